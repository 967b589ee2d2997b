package composite

import (
	"fmt"

	"github.com/goliatone/go-composite/pkg/common"
)

// stateMethods exposes the state API as callable members, so template and
// enclosure code can reach it through Call as well as through Product.
func stateMethods() map[string]any {
	return map[string]any{
		"getStateCursor": Method(func(self *Product, _ ...any) (any, error) {
			return self.GetStateCursor()
		}),
		"getStateAsObject": Method(func(self *Product, _ ...any) (any, error) {
			return self.GetStateAsObject()
		}),
		"reduceState": Method(func(self *Product, args ...any) (any, error) {
			reducer, err := objectArg("reduceState", args, 0)
			if err != nil {
				return false, err
			}
			return self.ReduceState(reducer)
		}),
		"reconfigState": Method(func(self *Product, args ...any) (any, error) {
			reconfiguration, err := objectArg("reconfigState", args, 0)
			if err != nil {
				return nil, err
			}
			return nil, self.ReconfigState(reconfiguration)
		}),
		"reduceStateAtPath": Method(func(self *Product, args ...any) (any, error) {
			if len(args) < 2 {
				return false, fmt.Errorf("composite: reduceStateAtPath expects a reducer and a path")
			}
			return self.ReduceStateAtPath(args[0], args[1])
		}),
		"reconfigStateAtPath": Method(func(self *Product, args ...any) (any, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("composite: reconfigStateAtPath expects a reconfiguration and a path")
			}
			return nil, self.ReconfigStateAtPath(args[0], args[1])
		}),
		"resetState": Method(func(self *Product, _ ...any) (any, error) {
			return self.ResetState()
		}),
		"flushState": Method(func(self *Product, _ ...any) (any, error) {
			return nil, self.FlushState()
		}),
		"updateStateAccessor": Method(func(self *Product, _ ...any) (any, error) {
			return nil, self.UpdateStateAccessor()
		}),
	}
}

func objectArg(method string, args []any, i int) (map[string]any, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("composite: %s expects an object argument", method)
	}
	object, ok := common.Normalize(args[i]).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("composite: %s expects an object, got %s", method, common.TypeOf(args[i]))
	}
	return object, nil
}
