package main

import "github.com/gematik/zero-lab/go/verifier/cmd/zero-verifier/cmd"

func main() {
	cmd.Execute()
}
