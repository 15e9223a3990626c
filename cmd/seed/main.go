package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"fleetpark/internal/config"
	"fleetpark/internal/db"
	"fleetpark/internal/domain"
	"fleetpark/internal/repository"
	"fleetpark/internal/service"
)

// Crea un usuario demo por rol. Correrlo dos veces no duplica nada.
func main() {
	domainFlag := flag.String("domain", "fleetpark.local", "dominio de los emails demo")
	password := flag.String("password", "fleetpark123", "password de los usuarios demo")
	flag.Parse()

	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	userSvc := service.NewUserService(logger, repository.NewPgUserRepository(pool))
	res, err := userSvc.Seed(ctx, demoUsers(*domainFlag, *password))
	if err != nil {
		logger.Fatal("seed users", zap.Error(err))
	}

	fmt.Printf("created: %s\n", strings.Join(res.Created, ", "))
	fmt.Printf("skipped: %s\n", strings.Join(res.Skipped, ", "))
}

func demoUsers(emailDomain, password string) []service.CreateUserInput {
	inputs := make([]service.CreateUserInput, 0, len(domain.Roles()))
	for _, role := range domain.Roles() {
		local := strings.ReplaceAll(strings.ToLower(role.String()), "_", ".")
		in := service.CreateUserInput{
			Email:       local + "@" + emailDomain,
			DisplayName: "Demo " + strings.ReplaceAll(strings.ToLower(role.String()), "_", " "),
			Password:    password,
			Role:        role.String(),
		}
		if role == domain.RoleCompanyAdmin || role == domain.RoleDriver {
			in.OrganizationID = "demo-fleet"
			in.OrganizationName = "Demo Fleet"
		}
		inputs = append(inputs, in)
	}
	return inputs
}
