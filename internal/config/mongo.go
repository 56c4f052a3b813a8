package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Clientes: exact lookup by matricula during identity resolution.
	clientesCollection := db.Collection("clientes")
	clienteIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "matricula", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := clientesCollection.Indexes().CreateMany(context.Background(), clienteIndexes)
	if err != nil {
		return err
	}

	// Faturas: one record per (matricula, ano, mes).
	faturasCollection := db.Collection("faturas")
	faturaIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "matricula", Value: 1},
				{Key: "ano", Value: 1},
				{Key: "mes", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "matricula", Value: 1}},
		},
	}
	_, err = faturasCollection.Indexes().CreateMany(context.Background(), faturaIndexes)
	if err != nil {
		return err
	}

	// Embeddings cache is keyed by _id (fingerprint); only an age index
	// is needed for maintenance scans.
	embeddingsCollection := db.Collection("embeddings")
	embeddingIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "criado_em", Value: 1}},
		},
	}
	_, err = embeddingsCollection.Indexes().CreateMany(context.Background(), embeddingIndexes)
	return err
}
