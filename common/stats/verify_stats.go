package stats

import (
	"bytes"
	"fmt"
	"testing"
)

// RuleChecker compares a rendered stat value (got) against an expected value.
type RuleChecker struct {
	name    string
	checker func(got, expected interface{}) bool
}

func nilCheck(a, b interface{}) (nilFound, eqValues bool) {
	switch {
	case a == nil && b == nil:
		return true, true
	case a == nil || b == nil:
		return true, false
	}
	return false, false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

var Int64EqTest = RuleChecker{name: "Int64EqTest", checker: func(a, b interface{}) bool {
	if nilFound, eq := nilCheck(a, b); nilFound {
		return eq
	}
	ai, aok := toInt64(a)
	bi, bok := toInt64(b)
	return aok && bok && ai == bi
}}

var Int64GTETest = RuleChecker{name: "Int64GTETest", checker: func(a, b interface{}) bool {
	if nilFound, eq := nilCheck(a, b); nilFound {
		return eq
	}
	ai, aok := toInt64(a)
	bi, bok := toInt64(b)
	return aok && bok && ai >= bi
}}

var FloatGTTest = RuleChecker{name: "FloatGTTest", checker: func(a, b interface{}) bool {
	if nilFound, eq := nilCheck(a, b); nilFound {
		return eq
	}
	af, aok := a.(float64)
	bf, bok := b.(float64)
	return aok && bok && af > bf
}}

var DoesNotExistTest = RuleChecker{name: "DoesNotExistTest", checker: func(a, b interface{}) bool {
	return a == nil
}}

// Rule pairs a checker with the expected value handed to it.
type Rule struct {
	Checker RuleChecker
	Value   interface{}
}

// VerifyStats fails t when any rule in contains doesn't hold for the registry.
// Only registries created by NewFinagleStatsRegistry can be verified.
func VerifyStats(tag string, statsRegistry StatsRegistry, t testing.TB, contains map[string]Rule) bool {
	reg, ok := statsRegistry.(*finagleStatsRegistry)
	if !ok {
		t.Errorf("%s: VerifyStats needs a finagle stats registry, got %T", tag, statsRegistry)
		return false
	}
	asJson := reg.MarshalAll()

	var msg bytes.Buffer
	failed := false
	for key, rule := range contains {
		got := asJson[key]
		if rule.Checker.checker(got, rule.Value) {
			continue
		}
		failed = true
		if rule.Checker.name == DoesNotExistTest.name {
			fmt.Fprintf(&msg, "%s: found stat entry when there should not be one\n", key)
		} else {
			fmt.Fprintf(&msg, "%s: got %v, expected to pass %s with %v\n", key, got, rule.Checker.name, rule.Value)
		}
	}
	if failed {
		pretty, _ := reg.MarshalJSONPretty()
		t.Errorf("%s: stats registry error:\n%s%s", tag, msg.String(), pretty)
	}
	return !failed
}
