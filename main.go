package main

import "github.com/ValentinKolb/walkv/cmd"

func main() {
	cmd.Execute()
}
