/*
Copyright © 2026 TradeOps Engineering
*/
package main

import "github.com/tradeops/taskforge/cmd"

func main() {
	cmd.Execute()
}
