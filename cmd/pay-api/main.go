package main

import (
	"context"
	"errors"
)

func main() {
	app := mustBootstrapPayAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !errors.Is(err, context.Canceled) {
		app.log.Errorw("pay_api_stopped", "err", err)
		panic(err)
	}
}
