package main

import (
	"github.com/yourapi/plesk-sitekick/cmd/agent"
)

func main() {
	agent.Execute()
}
