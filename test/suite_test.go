//go:build integration_test || all_tests

package test

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gmbtravels/gmbservice/internal"
	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/config"
	"github.com/gmbtravels/gmbservice/internal/docstore/mongostore"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

const (
	serverPort  = 9000
	metricsPort = 9001
	serverHost  = "127.0.0.1"

	testDatabase        = "gmb_travels_it"
	loginAttemptsPerMin = 20
)

var serverEndpoint = fmt.Sprintf("http://%s:%d/api", serverHost, serverPort)

var (
	testUsername = "testadmin"
	testPassword = "testpass"
)

// IntegrationTestSuite runs the whole service against real mongo and redis containers.
type IntegrationTestSuite struct {
	suite.Suite

	dockerPool *dockertest.Pool
	server     *internal.Server
	httpClient *http.Client
	teardown   []func()
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	fmt.Println("setting up test suite...")

	s.teardown = make([]func(), 0)
	s.httpClient = &http.Client{Timeout: 10 * time.Second}

	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	var err error
	s.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not create new dockertest pool: %s", err)
	}
	if err = s.dockerPool.Client.Ping(); err != nil {
		log.Fatalf("could not ping dockertest pool: %s", err)
	}

	redisPort, err := s.redisSetup()
	if err != nil {
		s.cleanup()
		log.Fatalf("failed to setup redis: %s", err)
	}
	fmt.Println("redis setup successful")

	mongoURI, err := s.mongoSetup(ctx)
	if err != nil {
		s.cleanup()
		log.Fatalf("failed to setup mongo: %s", err)
	}
	fmt.Println("mongo setup successful")

	cfg := getTestConfig(redisPort, mongoURI)
	if err := cfg.Validate(); err != nil {
		s.cleanup()
		log.Fatalf("test config: %s", err)
	}

	s.server, err = internal.NewServer(ctx, internal.NewServerParams{
		Config:      cfg,
		VersionInfo: "test-version-info",
	})
	if err != nil {
		s.cleanup()
		log.Fatalf("new server: %s", err)
	}
	fmt.Println("server created")

	s.server.Serve(cfg.Host, cfg.Port)
	if err := s.dockerPool.Retry(func() error {
		resp, err := s.httpClient.Get(serverEndpoint + "/health")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health status: %d", resp.StatusCode)
		}
		return nil
	}); err != nil {
		s.cleanup()
		log.Fatalf("server not healthy: %s", err)
	}
	fmt.Println("server started")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.cleanup()
}

func (s *IntegrationTestSuite) cleanup() {
	fmt.Println(" --> cleaning up test suite...")
	if s.server != nil {
		if err := s.server.GracefulShutdown(); err != nil {
			fmt.Printf(" --> test suite server shutdown: %s\n", err)
		}
	}
	for _, teardown := range s.teardown {
		teardown()
	}
	fmt.Println(" --> test suite cleanup done")
}

func getTestConfig(redisPort, mongoURI string) *config.Config {
	return &config.Config{
		Environment:         "test",
		Host:                serverHost,
		Port:                serverPort,
		MetricsHost:         serverHost,
		MetricsPort:         metricsPort,
		RedisHost:           "localhost",
		RedisPort:           redisPort,
		LoginAttemptsPerMin: loginAttemptsPerMin,
		DatabaseURI:         mongoURI,
		DatabaseName:        testDatabase,
		AllowedOrigins:      []string{"http://localhost:3000"},
		TrustedProxies:      []string{"127.0.0.1", "::1"},
		BcryptCost:          bcrypt.MinCost,
		Env: config.Env{
			SecretKey:     "integration-test-secret",
			SecretKeyID:   "v1",
			JWTAlgorithm:  config.SupportedJWTAlgorithm,
			JWTExpiresIn:  3600,
			AdminUsername: testUsername,
			AdminPassword: testPassword,
			AdminRole:     auth.RoleAdmin,
		},
	}
}

func (s *IntegrationTestSuite) redisSetup() (string, error) {
	redisResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		return "", fmt.Errorf("run redis: %w", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := redisResource.Close(); err != nil {
			fmt.Printf("redis teardown: %s\n", err)
		}
	})

	return redisResource.GetPort("6379/tcp"), nil
}

func (s *IntegrationTestSuite) mongoSetup(ctx context.Context) (string, error) {
	mongoResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return "", fmt.Errorf("dockerpool run mongo: %w", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := mongoResource.Close(); err != nil {
			fmt.Printf("mongo teardown: %s\n", err)
		}
	})

	uri := fmt.Sprintf("mongodb://%s", net.JoinHostPort("localhost", mongoResource.GetPort("27017/tcp")))
	if err := s.dockerPool.Retry(func() error {
		store, err := mongostore.Open(ctx, uri, testDatabase)
		if err != nil {
			return err
		}
		defer store.Close(ctx)
		_, err = store.Count(ctx, "ping")
		return err
	}); err != nil {
		return "", fmt.Errorf("connect to mongo: %w", err)
	}

	return uri, nil
}
