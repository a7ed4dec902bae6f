package main

import "worklink_backend/internal/app"

func main() {
	app.Run()
}
