package main

import "github.com/baharkarakas/circulation-backend/internal/cli"

func main() {
	cli.Execute()
}
