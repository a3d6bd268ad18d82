package main

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/api"
	"github.com/carson-networks/ingest-server/internal/config"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/service"
	"github.com/carson-networks/ingest-server/internal/storage"
)

func main() {
	logger := logging.SetupLogging()
	logrus.Info("ingest-server starting")

	envConfig, err := config.ProcessEnvironmentVariables()
	if err != nil {
		logrus.WithError(err).Fatal("config.ProcessEnvironmentVariables")
		return
	}

	store, err := storage.NewStorage(envConfig.DataDir)
	if err != nil {
		logrus.WithError(err).Fatal("storage.NewStorage")
		return
	}

	svc := service.NewService(store)

	delegator := operator.NewOperatorDelegator(store, envConfig.NumWorkers)
	delegator.Start()
	defer delegator.Stop()

	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		httpRest := api.Rest{
			Logger:   logger,
			Port:     envConfig.Port,
			MaxBytes: envConfig.MaxUploadBytes,
			Operator: delegator,
			Service:  svc,
		}
		httpRest.Serve()
	}()

	wg.Wait()
}
