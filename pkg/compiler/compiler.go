// Package compiler implements a single-pass Pratt parser that emits
// bytecode directly into a chunk.Chunk while tracking lexical scopes. No
// AST is ever materialized.
package compiler

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mray/scriptvm/pkg/chunk"
	"github.com/mray/scriptvm/pkg/scanner"
	"github.com/mray/scriptvm/pkg/value"
)

// uninitialized marks a local whose declaration has been seen but whose
// initializer hasn't finished compiling yet.
const uninitialized = -1

// maxLocals is the ceiling on simultaneously live locals, imposed by the
// 1-byte GetLocal/SetLocal operand.
const maxLocals = 256

// CompileError reports that one or more errors were found during
// compilation; messages have already been printed to diagnostic output at
// the point of detection.
type CompileError struct{ Count int }

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile failed with %d error(s)", e.Count)
}

type local struct {
	name  scanner.Token
	depth int
}

// Parser holds the scanner, current/previous tokens, and the error-recovery
// state machine; it is also the single-pass compiler, carrying the
// simulated local-variable stack and current scope depth alongside the
// chunk being emitted into.
type Parser struct {
	scanner *scanner.Scanner
	chunk   *chunk.Chunk

	current  scanner.Token
	previous scanner.Token

	hadError   bool
	panicMode  bool
	errorCount int

	locals     []local
	scopeDepth int
}

// Compile compiles source into a fresh chunk. On a compile error it still
// returns the partially-built chunk (callers should discard it) along with
// a non-nil *CompileError; diagnostics have already been printed to stderr.
func Compile(source string) (*chunk.Chunk, error) {
	p := &Parser{
		scanner: scanner.New(source),
		chunk:   chunk.New(),
	}
	p.advance()
	for !p.match(scanner.TokenEOF) {
		p.declaration()
	}
	p.emitByte(byte(chunk.OpReturn))

	if p.hadError {
		return p.chunk, &CompileError{Count: p.errorCount}
	}
	return p.chunk, nil
}

// --- token stream plumbing -------------------------------------------------

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scanner.ScanToken()
		if p.current.Kind != scanner.TokenError {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *Parser) check(kind scanner.TokenKind) bool {
	return p.current.Kind == kind
}

func (p *Parser) match(kind scanner.TokenKind) bool {
	if !p.check(kind) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(kind scanner.TokenKind, message string) {
	if p.current.Kind == kind {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

// --- error reporting --------------------------------------------------------

func (p *Parser) errorAtCurrent(message string) {
	p.errorAt(p.current, message)
}

func (p *Parser) error(message string) {
	p.errorAt(p.previous, message)
}

func (p *Parser) errorAt(tok scanner.Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	p.errorCount++

	fmt.Fprintf(os.Stderr, "[line %d] Error", tok.Line)
	switch tok.Kind {
	case scanner.TokenEOF:
		fmt.Fprint(os.Stderr, " at end")
	case scanner.TokenError:
		// scanner-synthesized errors carry their own message, no "at ..." clause
	default:
		fmt.Fprintf(os.Stderr, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(os.Stderr, ": %s\n", message)
}

// synchronize skips forward to the next likely statement boundary after an
// error, suppressing cascading diagnostics until then.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Kind != scanner.TokenEOF {
		if p.previous.Kind == scanner.TokenSemicolon {
			return
		}
		switch p.current.Kind {
		case scanner.TokenClass, scanner.TokenFun, scanner.TokenVar,
			scanner.TokenFor, scanner.TokenIf, scanner.TokenWhile,
			scanner.TokenPrint, scanner.TokenReturn:
			return
		}
		p.advance()
	}
}

// --- bytecode emission -------------------------------------------------------

func (p *Parser) emitByte(b byte) {
	p.chunk.WriteByte(b, p.previous.Line)
}

func (p *Parser) emitBytes(a, b byte) {
	p.emitByte(a)
	p.emitByte(b)
}

func (p *Parser) emitOp(op chunk.OpCode) {
	p.emitByte(byte(op))
}

func (p *Parser) makeConstant(v value.Value) byte {
	if id, ok := p.chunk.FindConstant(v); ok {
		return id
	}
	id, err := p.chunk.AddConstant(v)
	if err != nil {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return id
}

func (p *Parser) emitConstant(v value.Value) {
	p.emitBytes(byte(chunk.OpConstant), p.makeConstant(v))
}

// emitJump emits a jump opcode with a two-byte placeholder operand and
// returns the offset of the placeholder, to be patched later.
func (p *Parser) emitJump(op chunk.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xFF)
	p.emitByte(0xFF)
	return len(p.chunk.Code) - 2
}

func (p *Parser) patchJump(offset int) {
	if err := p.chunk.PatchJump(offset); err != nil {
		p.error(err.Error())
	}
}

// emitLoop emits OpLoop with a backward offset to loopStart.
func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(chunk.OpLoop)
	jump := len(p.chunk.Code) - loopStart + 2
	if jump > 0xFFFF {
		p.error("Loop body too large.")
	}
	p.emitByte(byte(jump & 0xFF))
	p.emitByte(byte((jump >> 8) & 0xFF))
}

// --- scopes & locals ---------------------------------------------------------

func (p *Parser) beginScope() {
	p.scopeDepth++
}

func (p *Parser) endScope() {
	p.scopeDepth--
	for len(p.locals) > 0 && p.locals[len(p.locals)-1].depth > p.scopeDepth {
		p.emitOp(chunk.OpPop)
		p.locals = p.locals[:len(p.locals)-1]
	}
}

func identifiersEqual(a, b scanner.Token) bool {
	return a.Lexeme == b.Lexeme
}

func (p *Parser) resolveLocal(name scanner.Token) (int, bool) {
	for i := len(p.locals) - 1; i >= 0; i-- {
		local := p.locals[i]
		if identifiersEqual(name, local.name) {
			if local.depth == uninitialized {
				p.error("Can't read local variable in its own initializer.")
			}
			return i, true
		}
	}
	return 0, false
}

func (p *Parser) addLocal(name scanner.Token) {
	if len(p.locals) >= maxLocals {
		p.error("Too many local variables in function.")
		return
	}
	p.locals = append(p.locals, local{name: name, depth: uninitialized})
}

func (p *Parser) declareVariable() {
	if p.scopeDepth == 0 {
		return
	}
	name := p.previous
	for i := len(p.locals) - 1; i >= 0; i-- {
		l := p.locals[i]
		if l.depth != uninitialized && l.depth < p.scopeDepth {
			break
		}
		if identifiersEqual(name, l.name) {
			p.error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *Parser) identifierConstant(name scanner.Token) byte {
	return p.makeConstant(value.String(name.Lexeme))
}

// parseVariable consumes an identifier, declares it (as a local if inside a
// scope), and returns the constant id to use for a global definition (0 and
// unused for locals).
func (p *Parser) parseVariable(message string) byte {
	p.consume(scanner.TokenIdentifier, message)
	p.declareVariable()
	if p.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous)
}

func (p *Parser) markInitialized() {
	if p.scopeDepth == 0 {
		return
	}
	p.locals[len(p.locals)-1].depth = p.scopeDepth
}

func (p *Parser) defineVariable(global byte) {
	if p.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitBytes(byte(chunk.OpDefineGlobal), global)
}

// --- statements ---------------------------------------------------------------

func (p *Parser) declaration() {
	if p.match(scanner.TokenVar) {
		p.varDeclaration()
	} else {
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")

	if p.match(scanner.TokenEqual) {
		p.expression()
	} else {
		p.emitOp(chunk.OpNil)
	}
	p.consume(scanner.TokenSemicolon, "Expect ';' after variable declaration.")

	p.defineVariable(global)
}

func (p *Parser) statement() {
	switch {
	case p.match(scanner.TokenPrint):
		p.printStatement()
	case p.match(scanner.TokenIf):
		p.ifStatement()
	case p.match(scanner.TokenWhile):
		p.whileStatement()
	case p.match(scanner.TokenFor):
		p.forStatement()
	case p.match(scanner.TokenLeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(scanner.TokenSemicolon, "Expect ';' after value.")
	p.emitOp(chunk.OpPrint)
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(scanner.TokenSemicolon, "Expect ';' after expression.")
	p.emitOp(chunk.OpPop)
}

func (p *Parser) block() {
	for !p.check(scanner.TokenRightBrace) && !p.check(scanner.TokenEOF) {
		p.declaration()
	}
	p.consume(scanner.TokenRightBrace, "Expect '}' after block.")
}

func (p *Parser) ifStatement() {
	p.consume(scanner.TokenLeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(scanner.TokenRightParen, "Expect ')' after condition.")

	thenJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()

	elseJump := p.emitJump(chunk.OpJump)

	p.patchJump(thenJump)
	p.emitOp(chunk.OpPop)

	if p.match(scanner.TokenElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.chunk.Code)
	p.consume(scanner.TokenLeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(scanner.TokenRightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(chunk.OpPop)
}

func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(scanner.TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case p.match(scanner.TokenSemicolon):
		// no initializer
	case p.match(scanner.TokenVar):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.chunk.Code)
	exitJump := -1
	if !p.match(scanner.TokenSemicolon) {
		p.expression()
		p.consume(scanner.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(chunk.OpJumpIfFalse)
		p.emitOp(chunk.OpPop)
	}

	if !p.match(scanner.TokenRightParen) {
		bodyJump := p.emitJump(chunk.OpJump)
		incrementStart := len(p.chunk.Code)
		p.expression()
		p.emitOp(chunk.OpPop)
		p.consume(scanner.TokenRightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(chunk.OpPop)
	}

	p.endScope()
}

// --- expressions ---------------------------------------------------------------

func (p *Parser) expression() {
	p.parsePrecedence(PrecAssignment)
}

func (p *Parser) parsePrecedence(precedence Precedence) {
	p.advance()
	prefixRule := getRule(p.previous.Kind).prefix
	if prefixRule == nil {
		p.error("Expect expression.")
		return
	}

	canAssign := precedence <= PrecAssignment
	prefixRule(p, canAssign)

	for precedence <= getRule(p.current.Kind).precedence {
		p.advance()
		infixRule := getRule(p.previous.Kind).infix
		infixRule(p, canAssign)
	}

	if canAssign && p.match(scanner.TokenEqual) {
		p.error("Invalid assignment target")
	}
}

func (p *Parser) number(canAssign bool) {
	v, err := strconv.ParseFloat(p.previous.Lexeme, 64)
	if err != nil {
		p.error("Invalid number literal.")
		return
	}
	p.emitConstant(value.Number(v))
}

func (p *Parser) stringLiteral(canAssign bool) {
	lexeme := p.previous.Lexeme
	p.emitConstant(value.String(lexeme[1 : len(lexeme)-1]))
}

func (p *Parser) literal(canAssign bool) {
	switch p.previous.Kind {
	case scanner.TokenNil:
		p.emitOp(chunk.OpNil)
	case scanner.TokenTrue:
		p.emitOp(chunk.OpTrue)
	case scanner.TokenFalse:
		p.emitOp(chunk.OpFalse)
	}
}

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.consume(scanner.TokenRightParen, "Expect ')' after expression.")
}

func (p *Parser) unary(canAssign bool) {
	operator := p.previous.Kind
	p.parsePrecedence(PrecUnary)
	switch operator {
	case scanner.TokenBang:
		p.emitOp(chunk.OpNot)
	case scanner.TokenMinus:
		p.emitOp(chunk.OpNegate)
	}
}

func (p *Parser) binary(canAssign bool) {
	operator := p.previous.Kind
	rule := getRule(operator)
	p.parsePrecedence(rule.precedence.next())

	switch operator {
	case scanner.TokenBangEqual:
		p.emitBytes(byte(chunk.OpEqual), byte(chunk.OpNot))
	case scanner.TokenEqualEqual:
		p.emitOp(chunk.OpEqual)
	case scanner.TokenGreater:
		p.emitOp(chunk.OpGreater)
	case scanner.TokenGreaterEqual:
		p.emitBytes(byte(chunk.OpLess), byte(chunk.OpNot))
	case scanner.TokenLess:
		p.emitOp(chunk.OpLess)
	case scanner.TokenLessEqual:
		p.emitBytes(byte(chunk.OpGreater), byte(chunk.OpNot))
	case scanner.TokenPlus:
		p.emitOp(chunk.OpAdd)
	case scanner.TokenMinus:
		p.emitOp(chunk.OpSubtract)
	case scanner.TokenStar:
		p.emitOp(chunk.OpMultiply)
	case scanner.TokenSlash:
		p.emitOp(chunk.OpDivide)
	}
}

func (p *Parser) and_(canAssign bool) {
	endJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
}

func (p *Parser) or_(canAssign bool) {
	elseJump := p.emitJump(chunk.OpJumpIfFalse)
	endJump := p.emitJump(chunk.OpJump)

	p.patchJump(elseJump)
	p.emitOp(chunk.OpPop)

	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
}

func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

func (p *Parser) namedVariable(name scanner.Token, canAssign bool) {
	var getOp, setOp chunk.OpCode
	arg, isLocal := p.resolveLocal(name)
	var argByte byte
	if isLocal {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
		argByte = byte(arg)
	} else {
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
		argByte = p.identifierConstant(name)
	}

	if canAssign && p.match(scanner.TokenEqual) {
		p.expression()
		p.emitBytes(byte(setOp), argByte)
	} else {
		p.emitBytes(byte(getOp), argByte)
	}
}
