// Package main provides the chat-gateway server binary.
package main

import (
	"os"

	"github.com/sirosfoundation/go-chat-gateway/cmd/gateway/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
