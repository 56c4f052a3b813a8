package main

import (
	"context"
	"log"
	"time"

	"conta-luz-chatbot/internal/config"
	"conta-luz-chatbot/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Seeds a development database with a sample customer and a year of
// faturas so the API can be exercised without real billing data.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.DBName)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cliente := models.Cliente{
		Matricula: "123456789",
		Nome:      "Maria Oliveira",
		Endereco:  "Rua das Acácias, 120 - Belo Horizonte/MG",
	}

	_, err = db.Collection("clientes").ReplaceOne(ctx,
		bson.M{"matricula": cliente.Matricula},
		cliente,
		options.Replace().SetUpsert(true))
	if err != nil {
		log.Fatalf("Failed to seed cliente: %v", err)
	}

	consumos := []float64{182, 175, 168, 154, 149, 141, 138, 152, 163, 177, 190, 205}
	agora := time.Now()
	total := 0

	for i, kwh := range consumos {
		ref := agora.AddDate(0, -(len(consumos) - i), 0)
		fatura := models.Fatura{
			Matricula:       cliente.Matricula,
			Ano:             ref.Year(),
			Mes:             int(ref.Month()),
			ConsumoKWh:      kwh,
			ValorTotal:      kwh * 0.92,
			Endereco:        cliente.Endereco,
			ClasseTarifaria: "residencial",
			Bandeira:        "verde",
			DataVencimento:  time.Date(ref.Year(), ref.Month(), 15, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0),
			ExtraidaEm:      agora,
		}

		_, err = db.Collection("faturas").ReplaceOne(ctx,
			bson.M{"matricula": fatura.Matricula, "ano": fatura.Ano, "mes": fatura.Mes},
			fatura,
			options.Replace().SetUpsert(true))
		if err != nil {
			log.Fatalf("Failed to seed fatura %d-%02d: %v", fatura.Ano, fatura.Mes, err)
		}
		total++
	}

	log.Printf("Seeded cliente %s with %d faturas", cliente.Matricula, total)
}
