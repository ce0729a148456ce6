package main

import (
	"context"
	"log"
	"math/rand"

	"github.com/google/uuid"

	"metrics-service/internal/config"
	"metrics-service/internal/domain"
	"metrics-service/internal/repository"
	"metrics-service/internal/util"
)

const (
	repoCount        = 3
	importsPerRepo   = 5
	optionalScoreOdd = 2 // roughly half the optional scores are left null
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store := repository.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.HTTPTimeout(), &util.MetricsLogger{})

	generateAndIngest(store)
}

func generateAndIngest(s domain.MetricStore) {

	ctx := context.Background()
	inserted := 0

	for r := 0; r < repoCount; r++ {
		repoID := uuid.NewString()

		for i := 0; i < importsPerRepo; i++ {
			metric := domain.Metric{
				RepoID:          repoID,
				ImportID:        uuid.NewString(),
				CommitHistScore: rand.Intn(101),
				ComplexityScore: rand.Intn(101),
			}

			if rand.Intn(optionalScoreOdd) == 0 {
				churn := rand.Intn(101)
				metric.ChurnScore = &churn
			}
			if rand.Intn(optionalScoreOdd) == 0 {
				pkg := rand.Intn(101)
				metric.PackageVersionScore = &pkg
			}
			total := metric.CommitHistScore + metric.ComplexityScore
			metric.TotalScore = &total

			created, err := s.CreateMetric(ctx, metric)
			if err != nil {
				log.Printf("Error inserting metric %s-%s: %v", metric.RepoID, metric.ImportID, err)
				continue
			}
			log.Printf("Inserted metric %s-%s", created.RepoID, created.ImportID)
			inserted++
		}
	}

	log.Printf("Data ingestion complete. Inserted %d metrics.", inserted)
}
