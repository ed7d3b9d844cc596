package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nocturne/internal/config"
	"nocturne/internal/engine"
	"nocturne/internal/store"
	"nocturne/internal/store/postgres"
	"nocturne/internal/store/sqlite"
	"nocturne/internal/validator"
)

const configFile = "nocturne.yaml"

func loadConfig() (*config.ProjectConfig, error) {
	return config.LoadProjectConfig(configFile)
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func openDB(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	if cfg.Database.Driver == "postgres" {
		return postgres.New(ctx, cfg.Database.DSN)
	}
	return sqlite.New(ctx, cfg.Database.DSN)
}

func buildValidator(cfg *config.ProjectConfig) (*validator.Validator, *validator.Synthesizer, error) {
	persona, err := config.LoadPersona(cfg.PersonaFile)
	if err != nil {
		return nil, nil, err
	}
	valid, err := validator.New(persona)
	if err != nil {
		return nil, nil, err
	}
	synth, err := validator.NewSynthesizer(persona)
	if err != nil {
		return nil, nil, err
	}
	return valid, synth, nil
}

func buildEngine(cfg *config.ProjectConfig, db store.Store, log *zap.Logger) (*engine.Engine, error) {
	valid, synth, err := buildValidator(cfg)
	if err != nil {
		return nil, err
	}
	cache := validator.NewCache(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
	return engine.New(db, valid, synth, cache, cfg.Progression.LevelThresholds, log)
}
