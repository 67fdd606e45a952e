package serialize

import (
	"fmt"
	"io"

	_ "github.com/tliron/commonlog/simple"
)

// DebugDump renders v with callables replaced by placeholders and writes the
// result to w. With a nil writer the result goes to the log at info level.
// opts may be nil; it is copied, never modified.
func DebugDump(w io.Writer, v any, opts *Options) error {
	o := DefaultOptions()
	if opts != nil {
		c := *opts
		o = &c
	}
	o.IgnoreFunction = true

	out, err := Serialize(v, o)
	if err != nil {
		return fmt.Errorf("debug dump: %w", err)
	}
	if w == nil {
		log.Info(out)
		return nil
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
