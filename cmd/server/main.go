package main

import "essayhub/internal/app"

// @title        EssayHub API
// @version      1.0
// @description  Order management backend for a writing-services business.
// @BasePath     /
func main() {
	app.Run()
}
