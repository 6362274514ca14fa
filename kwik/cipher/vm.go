package cipher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/robertkrimen/otto"
)

// Script engine names accepted by NewScriptEngine.
const (
	EngineGoja = "goja"
	EngineOtto = "otto"
	EngineNone = "none"

	defaultScriptTimeout = 5 * time.Second
)

// ScriptEngine evaluates a packed page script and returns what the script
// passed to eval instead of running it.
type ScriptEngine interface {
	Name() string
	Evaluate(ctx context.Context, script string) (string, error)
}

// NewScriptEngine returns the named engine. An empty name or "none" returns nil.
func NewScriptEngine(name string, timeout time.Duration) (ScriptEngine, error) {
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineNone:
		return nil, nil
	case EngineGoja:
		return &GojaEngine{Timeout: timeout}, nil
	case EngineOtto:
		return &OttoEngine{Timeout: timeout}, nil
	default:
		return nil, NewError(ErrCodeUnknownEngine, "unknown script engine", name)
	}
}

// capture collects eval payloads.
type capture struct {
	payloads []string
}

func (c *capture) result(runErr error) (string, error) {
	if len(c.payloads) > 0 {
		return strings.Join(c.payloads, "\n"), nil
	}
	if runErr != nil {
		return "", runErr
	}
	return "", NewError(ErrCodeEvalNotCalled, "script finished without calling eval")
}

// GojaEngine runs scripts in a fresh goja runtime per call.
type GojaEngine struct {
	Timeout time.Duration
}

func (e *GojaEngine) Name() string { return EngineGoja }

// Evaluate runs script with eval replaced by a recorder.
func (e *GojaEngine) Evaluate(ctx context.Context, script string) (string, error) {
	if strings.TrimSpace(script) == "" {
		return "", NewError(ErrCodeScriptNotFound, "empty script")
	}
	vm := goja.New()
	c := &capture{}
	record := func(call goja.FunctionCall) goja.Value {
		c.payloads = append(c.payloads, call.Argument(0).String())
		return goja.Undefined()
	}
	if err := vm.Set("eval", record); err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "install eval hook", err.Error())
	}
	_ = vm.Set("window", vm.GlobalObject())
	_ = vm.Set("console", map[string]any{
		"log": func(...any) {},
	})

	timer := time.AfterFunc(timeoutOr(e.Timeout), func() { vm.Interrupt("timeout") })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	_, err := vm.RunString(script)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			err = NewError(ErrCodeJSTimeout, "script interrupted", interrupted.Value())
		} else {
			err = NewError(ErrCodeJSExecutionFailed, "script failed", err.Error())
		}
	}
	return c.result(err)
}

// OttoEngine runs scripts in a fresh otto runtime per call.
type OttoEngine struct {
	Timeout time.Duration
}

func (e *OttoEngine) Name() string { return EngineOtto }

var errOttoHalt = errors.New("otto halted")

// Evaluate runs script with eval replaced by a recorder.
func (e *OttoEngine) Evaluate(ctx context.Context, script string) (out string, err error) {
	if strings.TrimSpace(script) == "" {
		return "", NewError(ErrCodeScriptNotFound, "empty script")
	}
	vm := otto.New()
	vm.Interrupt = make(chan func(), 1)
	c := &capture{}
	record := func(call otto.FunctionCall) otto.Value {
		c.payloads = append(c.payloads, call.Argument(0).String())
		return otto.UndefinedValue()
	}
	if err := vm.Set("eval", record); err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "install eval hook", err.Error())
	}

	halt := func() {
		select {
		case vm.Interrupt <- func() { panic(errOttoHalt) }:
		default:
		}
	}
	timer := time.AfterFunc(timeoutOr(e.Timeout), halt)
	defer timer.Stop()
	stop := context.AfterFunc(ctx, halt)
	defer stop()

	defer func() {
		if caught := recover(); caught != nil {
			if caught != errOttoHalt {
				panic(caught)
			}
			out, err = c.result(NewError(ErrCodeJSTimeout, "script interrupted"))
		}
	}()

	if _, runErr := vm.Run(script); runErr != nil {
		return c.result(NewError(ErrCodeJSExecutionFailed, "script failed", runErr.Error()))
	}
	return c.result(nil)
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultScriptTimeout
	}
	return d
}
