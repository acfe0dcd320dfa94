package oba

import "fmt"

// matchExpression compiles `match expr | pattern = expr | ... ;`. The
// "match" keyword itself is already consumed (this is reached as a
// Pratt prefix rule). The scrutinee is compiled once and stays on the
// stack under each equation's pattern/lambda pair; JUMP_IF_NOT_MATCH
// consumes the scrutinee only once an equation actually matches, so a
// run of mismatches leaves it in place for the next equation to test.
func (p *parser) matchExpression() {
	p.expression()
	p.skipNewlines()
	p.consume(TokenGuard, "Expect '|' to begin match equations.")

	var endJumps []int
	for {
		p.skipNewlines()
		notMatchJump := p.matchEquation()
		endJumps = append(endJumps, p.emitJump(OpJump))
		p.patchJump(notMatchJump)
		p.skipNewlines()
		if !p.match(TokenGuard) {
			break
		}
	}
	p.consume(TokenSemicolon, "Expect ';' to end a match expression.")

	msgIdx := p.chunk().AddConstant(ObjVal(p.internString("Match expression evaluated to nothing")))
	p.emitOpByte(OpError, byte(msgIdx))

	for _, j := range endJumps {
		p.patchJump(j)
	}
}

// matchEquation compiles one `pattern = expr` equation: the pattern
// value, then the body as a lambda taking the pattern's bound names as
// parameters, then the JUMP_IF_NOT_MATCH test and the CALL that
// invokes the lambda on a match. Returns the JUMP_IF_NOT_MATCH operand
// position for the caller to patch once it knows where the next
// equation (or the trailing ERROR) begins.
func (p *parser) matchEquation() int {
	binders, arity := p.matchPattern()

	p.consume(TokenAssign, "Expect '=' after pattern.")
	p.skipNewlines()
	p.compileLambda(binders)

	jumpPos := p.emitJump(OpJumpIfNotMatch)
	p.emitOpByte(OpCall, byte(arity))
	return jumpPos
}

// matchPattern compiles one pattern as a value pushed on the stack and
// returns the identifiers it binds (empty for a literal or an
// equality-constant identifier). See the pattern-match semantics: a
// Ctor pattern matches by identity and destructures; anything else
// matches by structural equality against the scrutinee.
func (p *parser) matchPattern() ([]Token, int) {
	switch {
	case p.match(TokenNumber):
		p.emitConstant(NumberVal(p.prev.Number))
		return nil, 0
	case p.match(TokenString):
		p.emitConstant(ObjVal(p.internString(p.prev.Str)))
		return nil, 0
	case p.match(TokenTrue):
		p.emitOp(OpTrue)
		return nil, 0
	case p.match(TokenFalse):
		p.emitOp(OpFalse)
		return nil, 0
	case p.match(TokenIdent):
		name := p.prev
		var binders []Token
		for p.check(TokenIdent) {
			p.advance()
			binders = append(binders, p.prev)
		}
		if info, ok := p.ctors[name.Lexeme]; ok {
			if len(binders) != info.arity {
				p.errorAt(name, fmt.Sprintf("'%s' expects %d argument(s), got %d.", name.Lexeme, info.arity, len(binders)))
			}
			p.emitConstant(ObjVal(info.obj))
			return binders, info.arity
		}
		if len(binders) > 0 {
			p.errorAt(name, fmt.Sprintf("'%s' is not a declared constructor.", name.Lexeme))
		}
		// Not a known constructor: an equality-constant pattern, the
		// identifier's current value resolved like any other variable
		// read.
		p.namedGet(name)
		return nil, 0
	default:
		p.errorAtCurrent("Expect a pattern.")
		return nil, 0
	}
}

// compileLambda compiles a match equation's body as an anonymous
// function whose parameters are the pattern's bound identifiers, in
// source order, emitting CLOSURE (and its upvalue pairs) into the
// enclosing function the same way a named "fn" does.
func (p *parser) compileLambda(params []Token) {
	p.pushCompiler(funcKindFunction, "")
	p.beginScope()
	for _, tok := range params {
		p.addLocal(tok)
	}
	p.cur.function.Arity = len(params)

	p.expression()

	capturedUpvalues := p.cur.upvalues
	fn := p.endCompiler()
	p.emitClosure(fn, capturedUpvalues)
}
