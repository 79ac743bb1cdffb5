package main

import "github.com/next-chapter/resume-engine/internal/cli"

func main() {
	cli.Execute()
}
