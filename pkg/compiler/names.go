package compiler

import (
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Statement keywords.
const (
	KwConst  = "CONST"
	KwSet    = "SET"
	KwSetAdr = "SETADR"
	KwUnset  = "UNSET"
	KwAdd    = "ADD"
	KwSub    = "SUB"
	KwMul    = "MUL"
	KwDiv    = "DIV"
	KwDef    = "DEF"
	KwEndDef = "ENDDEF"
	KwCall   = "CALL"
	KwIf     = "IF"
	KwEndIf  = "ENDIF"

	WordLow  = "LOW"
	WordHigh = "HIGH"
)

var statementWords = []string{
	KwConst, KwSet, KwSetAdr, KwUnset, KwAdd, KwSub, KwMul, KwDiv,
	KwDef, KwEndDef, KwCall, KwIf, KwEndIf, WordLow, WordHigh,
}

// nameChecker accepts identifiers that are not exactly a reserved word. The
// reserved set is the statement keywords plus the comparison keywords of the
// instruction set in use.
type nameChecker struct {
	re *regexp2.Regexp
}

// newNameChecker builds the pattern once per emitter; the lookahead lets
// "SETUP" through while rejecting "SET".
func newNameChecker(conditions []string) *nameChecker {
	words := make([]string, 0, len(statementWords)+len(conditions))
	for _, w := range statementWords {
		words = append(words, regexp2.Escape(w))
	}
	for _, w := range conditions {
		words = append(words, regexp2.Escape(w))
	}
	re := regexp2.MustCompile(
		`^(?!(?:`+strings.Join(words, "|")+`)$)[A-Za-z_][A-Za-z0-9_]*$`,
		regexp2.None,
	)
	return &nameChecker{re: re}
}

func (c *nameChecker) check(name string) error {
	ok, err := c.re.MatchString(name)
	if err != nil {
		return failf(ErrInvalidName, name, "name check failed: %v", err)
	}
	if !ok {
		return failf(ErrInvalidName, name, "names must be identifiers and not keywords")
	}
	return nil
}

// wordSelect reads the LOW/HIGH selector of MUL and DIV, in any case.
func wordSelect(token string) (high bool, err error) {
	switch cases.Upper(language.Und).String(token) {
	case WordLow:
		return false, nil
	case WordHigh:
		return true, nil
	}
	return false, failf(ErrInvalidContext, token, "expected %s or %s", WordLow, WordHigh)
}
