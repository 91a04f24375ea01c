package main

import "huddle_backend/internal/app"

func main() {
	app.Run()
}
