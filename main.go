package main

import "github.com/naka-gawa/github-scorecard/cmd"

func main() {
	cmd.Execute()
}
