package account

import (
	"strings"
	"sync"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"
)

// Policy gates first-time account creation. An empty policy allows
// everyone; otherwise any rule evaluating to true allows the sign-up.
// Existing accounts are never re-evaluated.
type Policy struct {
	rules []*Rule
}

func NewPolicy(scripts ...string) *Policy {
	rules := make([]*Rule, 0, len(scripts))
	for _, s := range scripts {
		rules = append(rules, NewRule(s))
	}

	return &Policy{rules: rules}
}

func (p *Policy) Allow(result *authn.AuthResult) (bool, error) {
	if len(p.rules) == 0 {
		return true, nil
	}

	domain := ""
	if at := strings.LastIndex(result.Email, "@"); at != -1 {
		domain = result.Email[at+1:]
	}

	env := map[string]any{
		"email":   result.Email,
		"domain":  domain,
		"subject": result.SubjectID,
	}

	for _, r := range p.rules {
		allowed, err := r.Exec(env)
		if err != nil {
			return false, errors.WithStack(err)
		}

		if allowed {
			return true, nil
		}
	}

	return false, nil
}

type Rule struct {
	script  string
	program *vm.Program

	compileOnce sync.Once
	compileErr  error
}

func (r *Rule) Exec(env map[string]any) (bool, error) {
	program, err := r.getProgram()
	if err != nil {
		return false, errors.WithStack(err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, errors.WithStack(err)
	}

	allowed, ok := result.(bool)
	if !ok {
		return false, errors.Errorf("unexpected rule '%s' result type '%T', expected boolean", r.script, result)
	}

	return allowed, nil
}

func (r *Rule) getProgram() (*vm.Program, error) {
	r.compileOnce.Do(func() {
		program, err := expr.Compile(r.script, expr.AsBool())
		if err != nil {
			r.compileErr = errors.WithStack(err)
			return
		}

		r.program = program
	})
	if r.compileErr != nil {
		return nil, errors.WithStack(r.compileErr)
	}

	return r.program, nil
}

func (r *Rule) String() string {
	return r.script
}

func NewRule(script string) *Rule {
	return &Rule{script: script}
}
