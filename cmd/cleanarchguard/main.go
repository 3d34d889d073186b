// Command cleanarchguard checks that the orgflow modules keep their layer
// boundaries: domain imports nothing outward, services never reach into
// infrastructure.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
