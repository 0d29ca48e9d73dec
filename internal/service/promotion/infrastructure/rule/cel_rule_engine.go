// internal/service/promotion/infrastructure/rule/cel_rule_engine.go
package rule

import (
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"tomatomall/internal/service/promotion/domain"
)

// CELRuleEngine 是 domain.RuleEngine 的 CEL 实现。
// 编译后的 Program 按表达式文本缓存，模板规则不会在每次下单时重新编译。
type CELRuleEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("total", cel.DoubleType),
		cel.Variable("user_id", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}
	return &CELRuleEngine{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile 校验表达式可以编译且结果为 bool
func (e *CELRuleEngine) Compile(ruleDefinition string) error {
	_, err := e.program(ruleDefinition)
	return err
}

// Evaluate 实现了 domain.RuleEngine 接口。空规则恒为 true。
func (e *CELRuleEngine) Evaluate(ruleDefinition string, fact domain.Fact) (bool, error) {
	if ruleDefinition == "" {
		return true, nil
	}
	prg, err := e.program(ruleDefinition)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"total":   fact.Total,
		"user_id": fact.UserID,
	})
	if err != nil {
		return false, errors.Wrap(err, "evaluate coupon rule")
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, domain.ErrInvalidRule
	}
	return ok, nil
}

func (e *CELRuleEngine) program(ruleDefinition string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[ruleDefinition]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(ruleDefinition)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(domain.ErrInvalidRule, "%v", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Wrap(domain.ErrInvalidRule, "rule must evaluate to bool")
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidRule, "%v", err)
	}

	e.mu.Lock()
	e.programs[ruleDefinition] = prg
	e.mu.Unlock()
	return prg, nil
}
