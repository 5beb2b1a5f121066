package main

import (
	"fmt"
	"os"

	"llm_billing_gateway/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.NewRootCommand(cmd.DefaultOptions()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
