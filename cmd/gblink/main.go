package main

import "github.com/rudransh-shrivastava/gblink/internal/cli"

func main() {
	cli.Execute()
}
