package store

import (
	"context"
	"errors"
	"fmt"

	"conta-luz-chatbot/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrClienteNaoEncontrado means no customer record exists for a matricula.
var ErrClienteNaoEncontrado = errors.New("cliente nao encontrado")

// BillingStore reads the structured billing records produced by the
// (external) extraction pipeline. Read-only at query time.
type BillingStore interface {
	Cliente(ctx context.Context, matricula string) (*models.Cliente, error)
	Faturas(ctx context.Context, matricula string) ([]models.Fatura, error)
	Fatura(ctx context.Context, ref models.DocumentRef) (*models.Fatura, error)
	Todas(ctx context.Context) ([]models.Fatura, error)
}

// MongoStore backs BillingStore with the clientes and faturas collections.
type MongoStore struct {
	clientes *mongo.Collection
	faturas  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		clientes: db.Collection("clientes"),
		faturas:  db.Collection("faturas"),
	}
}

func (s *MongoStore) Cliente(ctx context.Context, matricula string) (*models.Cliente, error) {
	var cliente models.Cliente
	err := s.clientes.FindOne(ctx, bson.M{"matricula": matricula}).Decode(&cliente)
	if err == mongo.ErrNoDocuments {
		return nil, ErrClienteNaoEncontrado
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cliente %s: %w", matricula, err)
	}
	return &cliente, nil
}

// Faturas returns the customer's billing history, oldest period first.
func (s *MongoStore) Faturas(ctx context.Context, matricula string) ([]models.Fatura, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ano", Value: 1}, {Key: "mes", Value: 1}})
	cur, err := s.faturas.Find(ctx, bson.M{"matricula": matricula}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load faturas for %s: %w", matricula, err)
	}
	defer cur.Close(ctx)

	var faturas []models.Fatura
	if err := cur.All(ctx, &faturas); err != nil {
		return nil, err
	}
	return faturas, nil
}

func (s *MongoStore) Fatura(ctx context.Context, ref models.DocumentRef) (*models.Fatura, error) {
	var ano, mes int
	if _, err := fmt.Sscanf(ref.Periodo, "%d-%d", &ano, &mes); err != nil {
		return nil, fmt.Errorf("invalid periodo %q: %w", ref.Periodo, err)
	}

	var fatura models.Fatura
	err := s.faturas.FindOne(ctx, bson.M{
		"matricula": ref.Matricula,
		"ano":       ano,
		"mes":       mes,
	}).Decode(&fatura)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("fatura %s/%s not found", ref.Matricula, ref.Periodo)
	}
	if err != nil {
		return nil, err
	}
	return &fatura, nil
}

// Todas streams every fatura for the batch index rebuild.
func (s *MongoStore) Todas(ctx context.Context) ([]models.Fatura, error) {
	cur, err := s.faturas.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan faturas: %w", err)
	}
	defer cur.Close(ctx)

	var faturas []models.Fatura
	if err := cur.All(ctx, &faturas); err != nil {
		return nil, err
	}
	return faturas, nil
}
