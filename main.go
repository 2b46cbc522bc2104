package main

import "github.com/ihor-shndr/mychat/cmd"

func main() {
	cmd.Execute()
}
