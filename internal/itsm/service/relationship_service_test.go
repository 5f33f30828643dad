package service

import (
	"context"
	"errors"
	"testing"

	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/atlasops/atlas-itsm/internal/itsm/testutil"
)

func setupRelationshipTest(t *testing.T) (*RelationshipService, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewRelationshipService(repos.Relationship, repos.Asset)

	testutil.SeedTestAsset(t, db, "asset-app-001", "Billing App", "Software License", entity.AssetStatusActive)
	testutil.SeedTestAsset(t, db, "asset-db-001", "Postgres Server", "Server", entity.AssetStatusActive)

	return svc, repos
}

func TestCreateRelationship(t *testing.T) {
	svc, _ := setupRelationshipTest(t)

	rel, err := svc.Create(context.Background(), "asset-app-001", "manager-001", &CreateRelationshipInput{
		TargetAssetID:    "asset-db-001",
		RelationshipType: entity.RelDependsOn,
	})
	if err != nil {
		t.Fatalf("create relationship: %v", err)
	}
	if rel.Criticality != 3 {
		t.Fatalf("expected default criticality 3, got %v", rel.Criticality)
	}
}

func TestCreateRelationshipValidation(t *testing.T) {
	svc, _ := setupRelationshipTest(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   *CreateRelationshipInput
	}{
		{"unknown type", &CreateRelationshipInput{TargetAssetID: "asset-db-001", RelationshipType: "linked_to"}},
		{"self reference", &CreateRelationshipInput{TargetAssetID: "asset-app-001", RelationshipType: entity.RelDependsOn}},
		{"missing target", &CreateRelationshipInput{TargetAssetID: "asset-nope-001", RelationshipType: entity.RelDependsOn}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, "asset-app-001", "manager-001", tc.in); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	badCrit := 9.0
	_, err := svc.Create(ctx, "asset-app-001", "manager-001", &CreateRelationshipInput{
		TargetAssetID: "asset-db-001", RelationshipType: entity.RelDependsOn, Criticality: &badCrit,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for out-of-range criticality, got %v", err)
	}
}

func TestDuplicateRelationshipIsRejected(t *testing.T) {
	svc, _ := setupRelationshipTest(t)
	ctx := context.Background()

	in := &CreateRelationshipInput{TargetAssetID: "asset-db-001", RelationshipType: entity.RelRunsOn}
	if _, err := svc.Create(ctx, "asset-app-001", "manager-001", in); err != nil {
		t.Fatalf("first create: %v", err)
	}

	if _, err := svc.Create(ctx, "asset-app-001", "manager-001", in); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation on duplicate edge, got %v", err)
	}

	// Same endpoints with a different type is a distinct edge
	other := &CreateRelationshipInput{TargetAssetID: "asset-db-001", RelationshipType: entity.RelConnectedTo}
	if _, err := svc.Create(ctx, "asset-app-001", "manager-001", other); err != nil {
		t.Fatalf("distinct type should be allowed: %v", err)
	}
}

func TestListForAssetSplitsDirections(t *testing.T) {
	svc, _ := setupRelationshipTest(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "asset-app-001", "manager-001", &CreateRelationshipInput{
		TargetAssetID: "asset-db-001", RelationshipType: entity.RelDependsOn,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	fromApp, err := svc.ListForAsset(ctx, "asset-app-001")
	if err != nil {
		t.Fatalf("list for source: %v", err)
	}
	if len(fromApp.Downstream) != 1 || len(fromApp.Upstream) != 0 {
		t.Fatalf("expected 1 downstream / 0 upstream, got %d/%d", len(fromApp.Downstream), len(fromApp.Upstream))
	}

	fromDB, err := svc.ListForAsset(ctx, "asset-db-001")
	if err != nil {
		t.Fatalf("list for target: %v", err)
	}
	if len(fromDB.Downstream) != 0 || len(fromDB.Upstream) != 1 {
		t.Fatalf("expected 0 downstream / 1 upstream, got %d/%d", len(fromDB.Downstream), len(fromDB.Upstream))
	}
}

func TestDeleteRelationshipRequiresEndpoint(t *testing.T) {
	svc, _ := setupRelationshipTest(t)
	ctx := context.Background()

	rel, err := svc.Create(ctx, "asset-app-001", "manager-001", &CreateRelationshipInput{
		TargetAssetID: "asset-db-001", RelationshipType: entity.RelDependsOn,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// An asset that is not an endpoint of the edge cannot delete it
	if err := svc.Delete(ctx, "asset-app-001", "no-such-rel"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown relationship, got %v", err)
	}

	if err := svc.Delete(ctx, "asset-db-001", rel.ID); err != nil {
		t.Fatalf("delete by target endpoint: %v", err)
	}
}
