package hookmgr

// nativeContext is the register snapshot in the order the generated capture
// stub pushes it. It is isomorphic to RegisterContext but not byte
// compatible: rbp sits between rax and rsp here, between rsi and rdx there.
// The two translator functions below are the only place that encodes the
// mapping.
type nativeContext struct {
	xmm    [16]Xmm
	rflags uint64
	r15    uint64
	r14    uint64
	r13    uint64
	r12    uint64
	r11    uint64
	r10    uint64
	r9     uint64
	r8     uint64
	rdi    uint64
	rsi    uint64
	rdx    uint64
	rcx    uint64
	rbx    uint64
	rax    uint64
	rbp    uint64
	rsp    uint64
}

// toConsumer copies the native snapshot into the consumer layout.
func toConsumer(n *nativeContext, c *RegisterContext) {
	c.Xmm = n.xmm
	c.Rflags = n.rflags
	c.R15 = n.r15
	c.R14 = n.r14
	c.R13 = n.r13
	c.R12 = n.r12
	c.R11 = n.r11
	c.R10 = n.r10
	c.R9 = n.r9
	c.R8 = n.r8
	c.Rdi = n.rdi
	c.Rsi = n.rsi
	c.Rbp = n.rbp
	c.Rdx = n.rdx
	c.Rcx = n.rcx
	c.Rbx = n.rbx
	c.Rax = n.rax
	c.Rsp = n.rsp
}

// fromConsumer copies a possibly mutated consumer context back into the
// native layout. rsp is deliberately left untouched: the engine resumes
// through the value it captured.
func fromConsumer(c *RegisterContext, n *nativeContext) {
	n.xmm = c.Xmm
	n.rflags = c.Rflags
	n.r15 = c.R15
	n.r14 = c.R14
	n.r13 = c.R13
	n.r12 = c.R12
	n.r11 = c.R11
	n.r10 = c.R10
	n.r9 = c.R9
	n.r8 = c.R8
	n.rdi = c.Rdi
	n.rsi = c.Rsi
	n.rbp = c.Rbp
	n.rdx = c.Rdx
	n.rcx = c.Rcx
	n.rbx = c.Rbx
	n.rax = c.Rax
}
