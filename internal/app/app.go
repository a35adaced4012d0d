package app

import (
	"go.uber.org/fx"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/cache"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/config"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/database"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/logger"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/messaging"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/observability"
	repositoryorder "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/repository/order"
	grpcserver "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/server/grpc"
	httpserver "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/server/http"
	serviceorder "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/service/order"
	transporthttp "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/transport/http"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/worker"
	workerorder "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
