/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/pitwall-go/cmd"

func main() {
	cmd.Execute()
}
