package main

import (
	"go.uber.org/fx"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
