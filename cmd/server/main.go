package main

import (
	"flag"
	"log"
	"strconv"
	"strings"

	"github.com/himanishpuri/behapy/internal/fp"
	"github.com/himanishpuri/behapy/pkg/behapy"
	"github.com/himanishpuri/behapy/pkg/utils"
)

var (
	port           int
	root           string
	dbPath         string
	isoChannel     string
	noLedger       bool
	allowedOrigins string
)

func init() {
	defaultPort, err := strconv.Atoi(utils.GetEnvOrDefault("BEHAPY_PORT", "8080"))
	if err != nil {
		defaultPort = 8080
	}
	flag.IntVar(&port, "port", defaultPort, "HTTP server port")
	flag.StringVar(&root, "root", ".", "BIDS dataset root")
	flag.StringVar(&dbPath, "db", utils.GetEnvOrDefault("BEHAPY_DB_PATH", ""), "Path to the run ledger")
	flag.StringVar(&isoChannel, "iso", utils.GetEnvOrDefault("BEHAPY_ISO_CHANNEL", fp.DefaultIsoChannel), "Name of the isosbestic channel")
	flag.BoolVar(&noLedger, "no-ledger", false, "Do not record runs in the ledger")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func main() {
	flag.Parse()
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	opts := []behapy.Option{behapy.WithRoot(root), behapy.WithIsoChannel(isoChannel)}
	switch {
	case noLedger:
		opts = append(opts, behapy.WithoutLedger())
	case dbPath != "":
		opts = append(opts, behapy.WithDBPath(dbPath))
	}

	service, err := behapy.NewService(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           port,
		AllowedOrigins: origins,
	})
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
