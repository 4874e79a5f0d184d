package main

import "github.com/jsphweid/keydrill/cmd"

func main() {
	cmd.Execute()
}
