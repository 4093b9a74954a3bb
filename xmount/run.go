package xmount

import (
	"context"
	"fmt"
	"os"
)

// Run builds a Session from cfg, serves it until unmounted, and returns
// a process exit code: 0 on clean exit, 1 on any fatal configuration or
// I/O error at startup.
func Run(cfg Config) int {
	sess, err := New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := sess.Serve(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
