package broute

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// causeLayer groups the wrappers of an error chain that share one message.
type causeLayer struct {
	err   error
	last  error
	stack *errors.ReportableStackTrace
}

// causeLayers splits the chain of err into layers. A new layer starts whenever the message changes while
// unwrapping, so wrappers that only add a stack trace or details stay with the error they wrap.
func causeLayers(err error) []causeLayer {
	var layers []causeLayer
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if len(layers) == 0 || layers[len(layers)-1].err.Error() != e.Error() {
			layers = append(layers, causeLayer{err: e})
		}

		cur := &layers[len(layers)-1]
		cur.last = e
		if cur.stack == nil {
			if st := errors.GetReportableStackTrace(e); st != nil && len(st.Frames) > 0 {
				cur.stack = st
			}
		}
	}

	return layers
}

func (l causeLayer) typeName() string {
	for e := l.err; e != nil; e = errors.UnwrapOnce(e) {
		if _, ok := e.(*Error); ok { //nolint:errorlint
			return fmt.Sprintf("%T", e)
		}
		if e == l.last { //nolint:errorlint
			break
		}
	}

	return fmt.Sprintf("%T", l.last)
}

func (l causeLayer) code() int {
	for e := l.err; e != nil; e = errors.UnwrapOnce(e) {
		if be, ok := e.(*Error); ok { //nolint:errorlint
			return be.Code()
		}
		if e == l.last { //nolint:errorlint
			break
		}
	}

	return 0
}

// location returns the file, line and formatted frames of the layer, innermost call first.
func (l causeLayer) location() (file string, line int, trace []string) {
	trace = []string{}
	if l.stack == nil {
		return "", 0, trace
	}

	frames := l.stack.Frames
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		trace = append(trace, f.Function+" "+f.AbsPath+":"+strconv.Itoa(f.Lineno))
	}

	top := frames[len(frames)-1]

	return top.AbsPath, top.Lineno, trace
}

// newDebug describes err and its causes. Previous lists the causes outermost first.
func newDebug(err error) *Debug {
	layers := causeLayers(err)
	if len(layers) == 0 {
		return nil
	}

	dbg := &Debug{Type: layers[0].typeName(), Previous: []ErrorDetail{}}
	dbg.File, dbg.Line, dbg.Trace = layers[0].location()

	for _, l := range layers[1:] {
		d := ErrorDetail{Type: l.typeName(), Code: l.code(), Message: l.err.Error()}
		d.File, d.Line, d.Trace = l.location()
		dbg.Previous = append(dbg.Previous, d)
	}

	return dbg
}

// chainMessages returns the message of every layer of err, outermost first.
func chainMessages(err error) []string {
	layers := causeLayers(err)
	msgs := make([]string, len(layers))
	for i, l := range layers {
		msgs[i] = l.typeName() + ": " + l.err.Error()
	}

	return msgs
}
