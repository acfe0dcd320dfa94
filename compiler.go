package oba

import "fmt"

// funcKind distinguishes the three shapes a compiled Function takes:
// a module's top-level code, a module body reached via IMPORT_MODULE,
// and an ordinary named or lambda function body. Only funcKindScript
// ever emits EXIT; a module body emits END_MODULE instead.
type funcKind int

const (
	funcKindScript funcKind = iota
	funcKindModule
	funcKindFunction
)

// local tracks one declared name within a function's scope chain: its
// token (for error messages and shadowing checks), the block depth it
// was declared at, and whether a nested function has captured it as
// an upvalue (which changes how scope-exit tears it down).
type local struct {
	name       Token
	depth      int
	isCaptured bool
}

// upvalueRef is an entry in a compiler's upvalue table: either a
// direct reference to the enclosing function's local (isLocal) or a
// pass-through to one of the enclosing function's own upvalues.
type upvalueRef struct {
	index   uint8
	isLocal bool
}

// maxLocals bounds how many locals (including parameters) a single
// function may declare; SET_LOCAL/GET_LOCAL address them with one
// byte. maxUpvalues is the matching bound for CLOSURE's upvalue list.
const (
	maxLocals   = 255
	maxUpvalues = 255
	maxJump     = 1<<16 - 1
)

// compilerState is one nested compiler frame, one per function body
// (including the outermost module/script). It mirrors the resolver
// described in §4.2: locals are resolved innermost-function-first,
// then recursively through enclosing functions (registering upvalues
// along the way), then as a module/VM global.
type compilerState struct {
	enclosing *compilerState
	function  *ObjFunction
	kind      funcKind

	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
}

// ctorInfo records a declared data constructor so pattern compilation
// can resolve a bare name to the exact *ObjCtor bound to it (pattern
// matching on a constructor is a pointer-identity check at runtime,
// not a name comparison, so the compiler has to hand back the very
// same object the "data" declaration allocated).
type ctorInfo struct {
	family string
	arity  int
	obj    *ObjCtor
}

// parser drives the Lexer and a chain of compilerState frames to
// produce one top-level Function per call to Compile. Lex/parse/
// compile errors are collected rather than aborting immediately, so a
// single Interpret call can report everything wrong with a module at
// once (mirroring the reference compiler's error-collection style).
type parser struct {
	vm     *VM
	module *ObjModule

	lexer   *Lexer
	current Token
	prev    Token

	errors []CompileError

	cur *compilerState

	// ctors accumulates every data constructor declared so far in this
	// compile (module-scoped; a fresh parser is created per module).
	ctors map[string]ctorInfo
}

// Compile lexes and compiles source as module's top-level code,
// returning the resulting Function (nil if any errors were
// collected) and the collected errors.
func Compile(vm *VM, module *ObjModule, source string) (*ObjFunction, []CompileError) {
	p := &parser{
		vm:     vm,
		module: module,
		lexer:  NewLexer(source),
		ctors:  make(map[string]ctorInfo),
	}

	kind := funcKindScript
	if module.Name == nil || string(module.Name.Bytes) != "main" {
		kind = funcKindModule
	}
	p.pushCompiler(kind, "")

	p.advance()
	p.skipNewlines()
	for !p.check(TokenEOF) {
		p.declaration()
		p.skipNewlines()
	}

	fn := p.endCompiler()
	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return fn, nil
}

func (p *parser) pushCompiler(kind funcKind, name string) {
	fn := p.vm.heap.NewFunction(p.module, name, 0)
	// fn isn't reachable from anywhere but this compiler chain until
	// endCompiler hands it to the enclosing frame's CLOSURE/constant
	// pool, so it's rooted for the rest of this compile the same way a
	// half-built Closure or Module is - PopTempRoot happens in
	// endCompiler, once fn is either returned to the caller or already
	// embedded as a constant in the enclosing function's chunk.
	p.vm.heap.PushTempRoot(ObjVal(fn))
	cs := &compilerState{enclosing: p.cur, function: fn, kind: kind}
	// Slot 0 of every frame is reserved for the callee itself (a
	// Closure or, for the outermost frame, the script/module's own
	// closure); it is never addressable by user code.
	cs.locals = append(cs.locals, local{depth: 0})
	p.cur = cs
}

// endCompiler closes off the current compilerState: the outermost
// script frame falls straight through to EXIT (it is never returned
// from via CALL/RETURN, so there is no frame above it to unwind into);
// an imported module's frame unwinds via END_MODULE; an ordinary
// function (block body or "= expr" shorthand alike) ends with the
// RETURN emitted here.
func (p *parser) endCompiler() *ObjFunction {
	cs := p.cur
	switch cs.kind {
	case funcKindScript:
		p.emitOp(OpExit)
	case funcKindModule:
		p.emitOp(OpEndModule)
	default:
		p.emitOp(OpReturn)
	}
	cs.function.UpvalueCount = len(cs.upvalues)
	p.cur = cs.enclosing
	// Matches the PushTempRoot in pushCompiler: cs.function is about to
	// be handed back to the caller, which either returns it from
	// Compile or embeds it as a constant in the enclosing function's
	// chunk (itself still rooted further up the compiler chain) via
	// emitClosure - either way it no longer needs its own temp root.
	p.vm.heap.PopTempRoot()
	return cs.function
}

// ---- token stream plumbing ----

func (p *parser) advance() {
	p.prev = p.current
	for {
		p.current = p.lexer.Next()
		if p.current.Type != TokenError {
			break
		}
		p.errorAtCurrent(p.current.Str)
	}
}

func (p *parser) check(t TokenType) bool { return p.current.Type == t }

func (p *parser) match(t TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(t TokenType, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

// skipNewlines consumes zero or more NEWLINE tokens; newlines are
// statement separators but are insignificant in the several contexts
// §4.2 documents (after operators, inside parens, between equations).
func (p *parser) skipNewlines() {
	for p.check(TokenNewline) {
		p.advance()
	}
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }

func (p *parser) errorAt(tok Token, msg string) {
	if len(msg) >= maxErrorSize {
		msg = msg[:maxErrorSize-1]
	}
	p.errors = append(p.errors, CompileError{
		Module:  string(p.module.Name.Bytes),
		Line:    tok.Line,
		Message: msg,
	})
}

// ---- bytecode emission ----

func (p *parser) chunk() *Chunk { return &p.cur.function.Chunk }

func (p *parser) emitByte(b byte) { p.chunk().Write(b, p.prev.Line) }

func (p *parser) emitOp(op OpCode) { p.emitByte(byte(op)) }

func (p *parser) emitOpByte(op OpCode, b byte) {
	p.emitOp(op)
	p.emitByte(b)
}

func (p *parser) emitConstant(v Value) {
	idx := p.chunk().AddConstant(v)
	if idx < 0 {
		p.errorAt(p.prev, "Too many constants in one function.")
		idx = 0
	}
	p.emitOpByte(OpConstant, byte(idx))
}

func (p *parser) internString(s string) *ObjString {
	return p.vm.heap.InternString([]byte(s))
}

// emitJump emits op followed by a placeholder u16 operand, returning
// the operand's byte offset for a later patchJump.
func (p *parser) emitJump(op OpCode) int {
	p.emitOp(op)
	pos := len(p.chunk().Code)
	p.chunk().WriteUint16(0xFFFF, p.prev.Line)
	return pos
}

func (p *parser) patchJump(pos int) {
	offset := len(p.chunk().Code) - (pos + 2)
	if offset > maxJump {
		p.errorAt(p.prev, "Jump target too far.")
		return
	}
	p.chunk().PatchUint16(pos, uint16(offset))
}

// emitLoop emits LOOP with an absolute backward target.
func (p *parser) emitLoop(target int) {
	p.emitOp(OpLoop)
	if target > maxJump {
		p.errorAt(p.prev, "Loop body too large.")
	}
	p.chunk().WriteUint16(uint16(target), p.prev.Line)
}

// ---- scope handling ----

func (p *parser) beginScope() { p.cur.scopeDepth++ }

// endScope tears down every local declared since the matching
// beginScope. Because blocks are expressions here (the last statement
// inside `{ }` leaves its value on top of the stack, above every
// local in the scope being torn down), this can't simply POP each
// local from the top the way a statement-oriented language would:
// doing so would discard the block's own result instead. Captured
// locals are closed in place by slot (OpCloseUpvalue takes an operand
// precisely so this doesn't require stack order), then a single
// OpSlide removes all of this scope's slots at once, leaving the
// result value as the new top.
func (p *parser) endScope() {
	cs := p.cur
	cs.scopeDepth--
	slideCount := 0
	for len(cs.locals) > 0 && cs.locals[len(cs.locals)-1].depth > cs.scopeDepth {
		slot := len(cs.locals) - 1
		if cs.locals[slot].isCaptured {
			p.emitOpByte(OpCloseUpvalue, byte(slot))
		}
		cs.locals = cs.locals[:len(cs.locals)-1]
		slideCount++
	}
	if slideCount > 0 {
		p.emitOpByte(OpSlide, byte(slideCount))
	}
}

func (p *parser) addLocal(name Token) {
	if len(p.cur.locals) >= maxLocals {
		p.errorAt(name, "Too many locals in one function.")
		return
	}
	for i := len(p.cur.locals) - 1; i >= 0; i-- {
		l := p.cur.locals[i]
		if l.depth != -1 && l.depth < p.cur.scopeDepth {
			break
		}
		if l.name.Lexeme == name.Lexeme {
			p.errorAt(name, fmt.Sprintf("'%s' is already declared in this scope.", name.Lexeme))
		}
	}
	p.cur.locals = append(p.cur.locals, local{name: name, depth: p.cur.scopeDepth})
}

// declareVariable binds name at the current scope: a local if inside
// a block/function, a module global otherwise. It returns the global
// name constant index to pass to DEFINE_GLOBAL, or -1 for a local.
func (p *parser) declareVariable(name Token) int {
	if p.cur.scopeDepth > 0 {
		p.addLocal(name)
		return -1
	}
	return p.chunk().AddConstant(ObjVal(p.internString(name.Lexeme)))
}

func (p *parser) resolveLocal(cs *compilerState, name string) int {
	for i := len(cs.locals) - 1; i >= 0; i-- {
		if cs.locals[i].name.Lexeme == name {
			return i
		}
	}
	return -1
}

func (p *parser) resolveUpvalue(cs *compilerState, name string) int {
	if cs.enclosing == nil {
		return -1
	}
	if idx := p.resolveLocal(cs.enclosing, name); idx != -1 {
		cs.enclosing.locals[idx].isCaptured = true
		return p.addUpvalue(cs, uint8(idx), true)
	}
	if idx := p.resolveUpvalue(cs.enclosing, name); idx != -1 {
		return p.addUpvalue(cs, uint8(idx), false)
	}
	return -1
}

func (p *parser) addUpvalue(cs *compilerState, index uint8, isLocal bool) int {
	for i, uv := range cs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(cs.upvalues) >= maxUpvalues {
		p.errorAt(p.prev, "Too many captured variables in one function.")
		return 0
	}
	cs.upvalues = append(cs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(cs.upvalues) - 1
}

// ---- declarations & statements ----

// declaration compiles one top-level item. Imports and data
// declarations leave nothing on the stack (their values are consumed
// into a global or a local slot); anything else goes through
// statement(false), which pops a value-producing statement's result.
func (p *parser) declaration() {
	switch {
	case p.match(TokenImport):
		p.importDeclaration()
	case p.match(TokenData):
		p.dataDeclaration()
	default:
		p.statement(false)
	}
}

func (p *parser) importDeclaration() {
	p.consume(TokenString, "Expect a module name string after 'import'.")
	name := p.prev.Str
	nameIdx := p.chunk().AddConstant(ObjVal(p.internString(name)))
	if nameIdx < 0 {
		p.errorAt(p.prev, "Too many constants in one function.")
		nameIdx = 0
	}
	p.emitOpByte(OpImportModule, byte(nameIdx))
	idx := p.declareVariable(p.syntheticIdent(name))
	p.defineVariable(idx)
}

// syntheticIdent builds an identifier token out of a module's import
// string so the imported module can be bound under its own name
// (`import "list"` binds the identifier `list`).
func (p *parser) syntheticIdent(s string) Token {
	return Token{Type: TokenIdent, Lexeme: s, Line: p.prev.Line}
}

func (p *parser) dataDeclaration() {
	p.consume(TokenIdent, "Expect a type name after 'data'.")
	family := p.prev.Lexeme
	p.consume(TokenAssign, "Expect '=' after the type name.")
	for {
		p.consume(TokenIdent, "Expect a constructor name.")
		ctorName := p.prev
		arity := 0
		for p.check(TokenIdent) {
			p.advance()
			arity++
		}
		ctor := p.vm.heap.NewCtor(family, ctorName.Lexeme, arity)
		p.ctors[ctorName.Lexeme] = ctorInfo{family: family, arity: arity, obj: ctor}
		idx := p.declareVariable(ctorName)
		p.emitConstant(ObjVal(ctor))
		p.defineVariable(idx)
		if !p.match(TokenGuard) {
			break
		}
		p.skipNewlines()
	}
}

// defineVariable finishes a declaration whose value is already on top
// of the stack: DEFINE_GLOBAL at module scope (idx >= 0), or simply
// leaving the value in its new local slot otherwise.
func (p *parser) defineVariable(globalIdx int) {
	if globalIdx < 0 {
		return
	}
	p.emitOpByte(OpDefineGlobal, byte(globalIdx))
}

// statement compiles one statement form. "fn" and "let" declare a
// variable and leave no extra value behind; every other branch leaves
// exactly one value, which statement itself pops unless isLast (the
// caller wants the value kept, as ifExpression does for its arms).
func (p *parser) statement(isLast bool) {
	switch {
	case p.match(TokenFn):
		p.fnStatement()
		return
	case p.match(TokenLet):
		p.letStatement()
		return
	case p.match(TokenDebug):
		p.expression()
		p.emitOp(OpDebug)
		p.emitConstant(NilVal())
	case p.match(TokenLbrace):
		p.blockExpression()
	case p.match(TokenIf):
		p.ifExpression()
	case p.match(TokenWhile):
		p.whileStatement()
		p.emitConstant(NilVal())
	default:
		p.expression()
	}
	if !isLast {
		p.emitOp(OpPop)
	}
}

func (p *parser) fnStatement() {
	p.consume(TokenIdent, "Expect a function name.")
	name := p.prev
	globalIdx := p.declareVariable(name)
	p.compileFunction(name.Lexeme)
	p.defineVariable(globalIdx)
}

// compileFunction parses a parameter list followed by either a block
// or "= expr" body, in a fresh nested compilerState, and emits CLOSURE
// (plus the upvalue capture pairs) into the enclosing function.
func (p *parser) compileFunction(name string) {
	p.pushCompiler(funcKindFunction, name)
	p.beginScope()

	arity := 0
	for p.check(TokenIdent) {
		p.advance()
		arity++
		p.addLocal(p.prev)
	}
	p.cur.function.Arity = arity

	if p.match(TokenAssign) {
		p.skipNewlines()
		p.expression()
	} else {
		p.consume(TokenLbrace, "Expect '{' or '=' to start a function body.")
		p.functionBlockBody()
	}

	capturedUpvalues := p.cur.upvalues
	fn := p.endCompiler()
	p.emitClosure(fn, capturedUpvalues)
}

// emitClosure emits CLOSURE <const> followed by one (isLocal, index)
// pair per captured upvalue, into whatever compiler is current - the
// caller must capture the nested compiler's upvalue table before
// endCompiler() pops back to the enclosing one.
func (p *parser) emitClosure(fn *ObjFunction, captured []upvalueRef) {
	idx := p.chunk().AddConstant(ObjVal(fn))
	p.emitOpByte(OpClosure, byte(idx))
	for _, uv := range captured {
		isLocal := byte(0)
		if uv.isLocal {
			isLocal = 1
		}
		p.emitByte(isLocal)
		p.emitByte(uv.index)
	}
}

// functionBlockBody compiles a brace-delimited function body: like a
// block, except the final statement's value is kept (not popped) to
// serve as the implicit return, and RETURN (not POP/CLOSE_UPVALUE
// scope teardown) is what the caller's endCompiler emits afterward -
// locals declared directly in the body share the function's top
// scope, so no extra beginScope/endScope pair wraps them.
func (p *parser) functionBlockBody() {
	p.skipNewlines()
	producedValue := false
	for !p.check(TokenRbrace) && !p.check(TokenEOF) {
		producedValue = p.bodyItem()
		p.skipNewlines()
	}
	p.consume(TokenRbrace, "Expect '}' to close a block.")
	if !producedValue {
		p.emitConstant(NilVal())
	}
}

// bodyItem compiles one declaration-or-statement within a block body
// and reports whether it left a value on the stack. Because the
// parser has no lookahead beyond one token, whether a value-producing
// statement is "last" is decided retroactively: it checks for an
// immediately following '}' before deciding whether to pop.
func (p *parser) bodyItem() bool {
	switch {
	case p.match(TokenImport):
		p.importDeclaration()
		return false
	case p.match(TokenData):
		p.dataDeclaration()
		return false
	case p.match(TokenFn):
		p.fnStatement()
		return false
	case p.match(TokenLet):
		p.letStatement()
		return false
	case p.match(TokenDebug):
		p.expression()
		p.emitOp(OpDebug)
		p.emitConstant(NilVal())
	case p.match(TokenLbrace):
		p.blockExpression()
	case p.match(TokenIf):
		p.ifExpression()
	case p.match(TokenWhile):
		p.whileStatement()
		p.emitConstant(NilVal())
	default:
		p.expression()
	}

	p.skipNewlinesPeek()
	if p.check(TokenRbrace) {
		return true
	}
	p.emitOp(OpPop)
	return false
}

// skipNewlinesPeek consumes NEWLINEs the same way skipNewlines does;
// it exists as a separate name at the call site in bodyItem purely to
// document why the lookahead for '}' happens after skipping them.
func (p *parser) skipNewlinesPeek() { p.skipNewlines() }

func (p *parser) letStatement() {
	p.consume(TokenIdent, "Expect a variable name after 'let'.")
	name := p.prev
	globalIdx := p.declareVariable(name)
	p.consume(TokenAssign, "Expect '=' after variable name.")
	p.skipNewlines()
	p.expression()
	p.defineVariable(globalIdx)
}

func (p *parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	p.expression()
	exitJump := p.emitJump(OpJumpIfFalse)
	p.statement(false)
	p.emitLoop(loopStart)
	p.patchJump(exitJump)
}

// blockExpression compiles `{ ... }` as an expression: a fresh scope
// whose final statement's value survives scope-exit as the block's
// own value. That value sits on top of the block's locals when the
// scope ends; endScope closes any captured ones by slot and then
// SLIDEs them out from under it (nil is the value of a block whose
// last item declared something).
func (p *parser) blockExpression() {
	p.beginScope()
	p.skipNewlines()
	producedValue := false
	for !p.check(TokenRbrace) && !p.check(TokenEOF) {
		producedValue = p.bodyItem()
		p.skipNewlines()
	}
	p.consume(TokenRbrace, "Expect '}' to close a block.")
	if !producedValue {
		p.emitConstant(NilVal())
	}
	p.endScope()
}

// ifExpression compiles `if cond stmt (else stmt)?` as a value: both
// arms always leave exactly one value (an absent else leaves nil), so
// `if` composes anywhere an expression is expected, including as a
// function's last statement (scenario 6's `if n == 0 0 else ...`).
func (p *parser) ifExpression() {
	p.expression()
	thenJump := p.emitJump(OpJumpIfFalse)
	p.statement(true)
	elseJump := p.emitJump(OpJump)

	p.patchJump(thenJump)
	if p.match(TokenElse) {
		p.statement(true)
	} else {
		p.emitConstant(NilVal())
	}
	p.patchJump(elseJump)
}
