// Command shellgate is the policy-enforcing shell execution gateway's
// entry point.
package main

import "github.com/opsguard/shellgate/cmd"

func main() {
	cmd.Execute()
}
