package main

import "vipham/internal/app"

func main() {
	app.Main()
}
