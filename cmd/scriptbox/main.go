// Command scriptbox runs the sandboxed script execution engine, either as a
// one-shot CLI or as an HTTP service.
package main

import "github.com/leapstack-labs/scriptbox/internal/cli"

func main() {
	cli.Execute()
}
