package oba

// precedence levels, lowest to highest. ASSIGN is handled specially
// inside the identifier parselet (only identifiers can be assignment
// targets) rather than as a generic infix operator.
type precedence int

const (
	precNone precedence = iota
	precAssign
	precCond
	precSum
	precProduct
	precMember
	precUnary
	precCall
)

var infixPrecedence = map[TokenType]precedence{
	TokenGt: precCond, TokenLt: precCond, TokenGte: precCond, TokenLte: precCond,
	TokenEq: precCond, TokenNeq: precCond,
	TokenPlus: precSum, TokenMinus: precSum,
	TokenMultiply: precProduct, TokenDivide: precProduct,
	TokenMember: precMember,
	TokenLparen: precCall,
}

// expression parses and compiles one expression at the lowest
// precedence above assignment - the entry point every statement form
// that needs an expression value calls.
func (p *parser) expression() { p.parsePrecedence(precAssign) }

func (p *parser) parsePrecedence(min precedence) {
	p.advance()
	canAssign := min <= precAssign
	if !p.prefix(p.prev.Type, canAssign) {
		p.errorAt(p.prev, "Expect an expression.")
		return
	}

	for {
		prec, ok := infixPrecedence[p.current.Type]
		if !ok || prec < min {
			break
		}
		p.advance()
		p.infix(p.prev.Type, canAssign)
	}
}

// prefix dispatches a token that can begin an expression. Returns
// false if tok isn't a valid expression starter.
func (p *parser) prefix(tok TokenType, canAssign bool) bool {
	switch tok {
	case TokenNumber:
		p.numberLiteral()
	case TokenTrue:
		p.emitOp(OpTrue)
	case TokenFalse:
		p.emitOp(OpFalse)
	case TokenString:
		p.emitConstant(ObjVal(p.internString(p.prev.Str)))
	case TokenInterpolation:
		p.interpolation()
	case TokenIdent:
		p.variable(canAssign)
	case TokenLparen:
		p.grouping()
	case TokenMinus, TokenNot:
		p.unary()
	case TokenIf:
		p.ifExpression()
	case TokenMatch:
		p.matchExpression()
	case TokenLbrace:
		p.blockExpression()
	default:
		return false
	}
	return true
}

func (p *parser) infix(tok TokenType, canAssign bool) {
	switch tok {
	case TokenPlus, TokenMinus, TokenMultiply, TokenDivide,
		TokenGt, TokenLt, TokenGte, TokenLte, TokenEq, TokenNeq:
		p.binary(tok)
	case TokenMember:
		p.member()
	case TokenLparen:
		p.call()
	}
}

func (p *parser) numberLiteral() {
	p.emitConstant(NumberVal(p.prev.Number))
}

func (p *parser) grouping() {
	p.skipNewlines()
	p.expression()
	p.skipNewlines()
	p.consume(TokenRparen, "Expect ')' after expression.")
}

func (p *parser) unary() {
	op := p.prev.Type
	switch op {
	case TokenMinus:
		// No dedicated NEGATE opcode: 0 - x reuses MINUS. The 0 has to
		// be pushed before the operand since MINUS computes the
		// deeper-pushed value minus the top one.
		p.emitConstant(NumberVal(0))
		p.parsePrecedence(precUnary)
		p.emitOp(OpMinus)
	case TokenNot:
		p.parsePrecedence(precUnary)
		p.emitOp(OpNot)
	}
}

func (p *parser) variable(canAssign bool) {
	name := p.prev

	if canAssign && p.check(TokenAssign) {
		if _, ok := p.ctors[name.Lexeme]; ok {
			p.errorAt(name, "Cannot assign to a constructor name.")
		}
		p.advance()
		p.skipNewlines()
		p.namedAssign(name)
		return
	}
	p.namedGet(name)
}

func (p *parser) namedGet(name Token) {
	if idx := p.resolveLocal(p.cur, name.Lexeme); idx != -1 {
		p.emitOpByte(OpGetLocal, byte(idx))
		return
	}
	if idx := p.resolveUpvalue(p.cur, name.Lexeme); idx != -1 {
		p.emitOpByte(OpGetUpvalue, byte(idx))
		return
	}
	idx := p.chunk().AddConstant(ObjVal(p.internString(name.Lexeme)))
	p.emitOpByte(OpGetGlobal, byte(idx))
}

func (p *parser) namedAssign(name Token) {
	p.expression()
	if idx := p.resolveLocal(p.cur, name.Lexeme); idx != -1 {
		p.emitOpByte(OpSetLocal, byte(idx))
		return
	}
	if idx := p.resolveUpvalue(p.cur, name.Lexeme); idx != -1 {
		p.emitOpByte(OpSetUpvalue, byte(idx))
		return
	}
	p.errorAt(name, "Cannot reassign a global variable; use 'let' to declare a new one.")
}

func (p *parser) binary(op TokenType) {
	prec := infixPrecedence[op]
	p.parsePrecedence(prec + 1)
	switch op {
	case TokenPlus:
		p.emitOp(OpAdd)
	case TokenMinus:
		p.emitOp(OpMinus)
	case TokenMultiply:
		p.emitOp(OpMultiply)
	case TokenDivide:
		p.emitOp(OpDivide)
	case TokenGt:
		p.emitOp(OpGt)
	case TokenLt:
		p.emitOp(OpLt)
	case TokenGte:
		p.emitOp(OpGte)
	case TokenLte:
		p.emitOp(OpLte)
	case TokenEq:
		p.emitOp(OpEq)
	case TokenNeq:
		p.emitOp(OpNeq)
	}
}

// member compiles `expr :: name`: the left side must already have
// left a Module value on the stack (an imported module bound to a
// local/global identifier); GET_IMPORTED_VARIABLE pops it and pushes
// the named top-level binding.
func (p *parser) member() {
	p.consume(TokenIdent, "Expect a name after '::'.")
	idx := p.chunk().AddConstant(ObjVal(p.internString(p.prev.Lexeme)))
	p.emitOpByte(OpGetImportedVariable, byte(idx))
}

// call compiles the `(args)` suffix of a function or constructor
// call; the callee is already on the stack from the preceding primary
// expression.
func (p *parser) call() {
	argc := p.argumentList()
	p.emitOpByte(OpCall, byte(argc))
}

func (p *parser) argumentList() int {
	p.skipNewlines()
	argc := 0
	if !p.check(TokenRparen) {
		for {
			p.skipNewlines()
			p.expression()
			argc++
			p.skipNewlines()
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.skipNewlines()
	p.consume(TokenRparen, "Expect ')' after arguments.")
	return argc
}

// interpolation compiles a spliced string literal. p.prev is already
// the first segment token (TokenInterpolation or, degenerately,
// TokenString) when this is called. See DESIGN.md for the derivation
// of this emission order from the worked example in the design notes.
func (p *parser) interpolation() {
	first := true
	for {
		seg := p.prev
		p.emitConstant(ObjVal(p.internString(seg.Str)))
		hasExpr := seg.Type == TokenInterpolation

		if hasExpr {
			p.expression()
			p.emitOp(OpString)
			p.emitOp(OpAdd)
		}
		if !first {
			p.emitOp(OpAdd)
		}
		first = false

		if !hasExpr {
			break
		}
		p.advance()
	}
}
