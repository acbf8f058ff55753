package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodict/protoschema"
)

const reflectTimeout = 30 * time.Second

// loadRegistry returns the registry named by the schema flags. At most one of
// -proto, -protoset, and -reflect may be given. With none, the generated
// types linked into the binary are used.
func loadRegistry(ctx context.Context, cfg *config, log *zap.Logger) (*protoschema.Registry, error) {
	var sources int
	for _, set := range []bool{len(cfg.Protos) > 0, cfg.Protoset != "", cfg.Reflect != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return nil, fmt.Errorf("%w: only one of -proto, -protoset, and -reflect may be used", errUsage)
	}

	switch {
	case len(cfg.Protos) > 0:
		log.Debug("compiling proto sources", zap.Strings("files", cfg.Protos), zap.Strings("import_paths", cfg.ImportPaths))
		opts := protoschema.CompileOptions{ImportPaths: cfg.ImportPaths}
		return opts.Compile(ctx, cfg.Protos...)
	case cfg.Protoset != "":
		log.Debug("loading protoset", zap.String("file", cfg.Protoset))
		return protoschema.LoadProtoset(cfg.Protoset)
	case cfg.Reflect != "":
		if cfg.Type == "" {
			return nil, fmt.Errorf("%w: -reflect requires -type", errUsage)
		}
		return reflectRegistry(ctx, cfg, log)
	default:
		return protoschema.GlobalRegistry(), nil
	}
}

func reflectRegistry(ctx context.Context, cfg *config, log *zap.Logger) (*protoschema.Registry, error) {
	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	conn, err := grpc.NewClient(cfg.Reflect, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Reflect, err)
	}
	defer func() {
		_ = conn.Close()
	}()
	ctx, cancel := context.WithTimeout(ctx, reflectTimeout)
	defer cancel()
	log.Debug("fetching descriptors via server reflection", zap.String("address", cfg.Reflect), zap.String("type", cfg.Type))
	return protoschema.FromServerReflection(ctx, conn, protoreflect.FullName(cfg.Type))
}
