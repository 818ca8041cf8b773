package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/refugio-api/internal/application/inventory"
	"github.com/jhoicas/refugio-api/internal/application/ports"
	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/infrastructure/memory"
	"github.com/jhoicas/refugio-api/pkg/logger"
)

var today = time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

func newUseCase() (*inventory.SupplyUseCase, *memory.Store) {
	store := memory.NewStore()
	uc := inventory.NewSupplyUseCase(store, store.Supplies(), ports.FixedClock{T: today}, logger.Nop())
	return uc, store
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// ──────────────────────────────────────────────────────────────────────────────
// Alta y fusión
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateOrMerge_CreaNuevoNormalizado(t *testing.T) {
	uc, _ := newUseCase()
	res, err := uc.CreateOrMerge(context.Background(), inventory.CreateSupplyInput{
		Name: "  Suero   fisiológico ", Unit: " ml ", Quantity: "250.5",
	})
	require.NoError(t, err)
	assert.False(t, res.Merged)
	assert.Equal(t, "Suero fisiológico", res.Supply.Name)
	assert.Equal(t, "ml", res.Supply.Unit)
	assert.Equal(t, "250.5", res.Supply.Stock.String())
	assert.Nil(t, res.Supply.ExpiresAt)
}

func TestCreateOrMerge_FusionaMismoNombreYUnidad(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()
	first, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{
		Name: "Amoxicilina", Unit: "ml", Quantity: "10", ExpiresAt: date(2026, 6, 1),
	})
	require.NoError(t, err)

	second, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{
		Name: "AMOXICILINA", Unit: "ML", Quantity: "5", ExpiresAt: date(2026, 9, 1),
	})
	require.NoError(t, err)
	assert.True(t, second.Merged)
	assert.Equal(t, first.Supply.ID, second.Supply.ID)
	assert.Equal(t, "15", second.Supply.Stock.String())
	require.NotNil(t, second.Supply.ExpiresAt)
	assert.Equal(t, "2026-09-01", *second.Supply.ExpiresAt)

	// un vencimiento más cercano no reemplaza al más lejano
	third, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{
		Name: "amoxicilina", Unit: "ml", Quantity: "1", ExpiresAt: date(2026, 7, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", *third.Supply.ExpiresAt)
}

func TestCreateOrMerge_OtraUnidadEsConflicto(t *testing.T) {
	uc, store := newUseCase()
	ctx := context.Background()
	created, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Gasas", Unit: "unidad", Quantity: "20"})
	require.NoError(t, err)

	_, err = uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "gasas", Unit: "caja", Quantity: "3"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := store.Supplies().GetByID(ctx, created.Supply.ID)
	require.NoError(t, err)
	assert.Equal(t, "20", got.Stock.String())
}

func TestCreateOrMerge_Validaciones(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()

	_, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "   ", Unit: "ml"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Vacuna", Unit: ""})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Vacuna", Unit: "dosis", ExpiresAt: date(2026, 5, 9)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// vence hoy: todavía es válida
	res, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Vacuna", Unit: "dosis", Quantity: "abc", ExpiresAt: date(2026, 5, 10)})
	require.NoError(t, err)
	assert.True(t, res.Supply.Stock.IsZero())
	assert.False(t, res.Supply.Expired)

	res, err = uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Jeringa", Unit: "u", Quantity: "-4"})
	require.NoError(t, err)
	assert.True(t, res.Supply.Stock.IsZero())
}

func TestCreateOrMerge_FueraDeRango(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()

	// al crear, una cantidad fuera de rango se toma como cero
	res, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Gasas", Unit: "u", Quantity: "1e900000000"})
	require.NoError(t, err)
	assert.True(t, res.Supply.Stock.IsZero())

	_, err = uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Suero", Unit: "ml", Quantity: "99999999"})
	require.NoError(t, err)
	_, err = uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "suero", Unit: "ml", Quantity: "1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, err := uc.List(ctx, "suero")
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "99999999", list.Items[0].Stock.String())
}

func TestCreateOrMerge_AdvierteSiElExistenteEstaVencido(t *testing.T) {
	uc, store := newUseCase()
	ctx := context.Background()
	require.NoError(t, store.Supplies().Create(ctx, &entity.Supply{
		Name: "Vacuna", Unit: "dosis", Stock: decimal.NewFromInt(2), ExpiresAt: date(2026, 5, 9),
	}))

	res, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "vacuna", Unit: "dosis", Quantity: "3"})
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.Equal(t, "5", res.Supply.Stock.String())
	assert.True(t, res.Supply.Expired)
	assert.Contains(t, res.Warning, "vencido")
	assert.Contains(t, res.Warning, "2026-05-09")

	// con un vencimiento nuevo deja de estar vencido, pero el aviso describe lo que había
	res, err = uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Vacuna", Unit: "dosis", Quantity: "1", ExpiresAt: date(2026, 8, 1)})
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "vencido")
	assert.False(t, res.Supply.Expired)

	res, err = uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Vacuna", Unit: "dosis", Quantity: "1"})
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
}

func TestCreateOrMerge_ConcurrenteMismoNombreSumaTodo(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()
	_, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Algodón", Unit: "g", Quantity: "0"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "algodón", Unit: "G", Quantity: "0.5"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := uc.List(ctx, "algodón")
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "10", list.Items[0].Stock.String())
}

// ──────────────────────────────────────────────────────────────────────────────
// Reposición, edición y baja
// ──────────────────────────────────────────────────────────────────────────────

func TestRestock_SumaYRechazaNegativo(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()
	res, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Suero", Unit: "ml", Quantity: "5"})
	require.NoError(t, err)
	id := res.Supply.ID

	out, err := uc.Restock(ctx, id, decimal.RequireFromString("2.25"))
	require.NoError(t, err)
	assert.Equal(t, "7.25", out.Stock.String())

	_, err = uc.Restock(ctx, id, decimal.NewFromInt(-8))
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := uc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "7.25", got.Stock.String())

	_, err = uc.Restock(ctx, 999, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestock_FueraDeRango(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()
	res, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Suero", Unit: "ml", Quantity: "5"})
	require.NoError(t, err)
	id := res.Supply.ID

	for _, d := range []string{"1e900000000", "-1e900000000", "1e-900000000", "0.001", "100000000"} {
		_, err = uc.Restock(ctx, id, decimal.RequireFromString(d))
		assert.ErrorIs(t, err, domain.ErrValidation, d)
	}

	_, err = uc.Restock(ctx, id, decimal.RequireFromString("99999995"))
	assert.ErrorIs(t, err, domain.ErrValidation, "5 + 99999995 llega a 1e8")

	out, err := uc.Restock(ctx, id, decimal.RequireFromString("99999994.99"))
	require.NoError(t, err)
	assert.Equal(t, "99999999.99", out.Stock.String())
}

func TestEdit_NoTocaStockYDetectaNombreDuplicado(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()
	a, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Ketamina", Unit: "ml", Quantity: "3", ExpiresAt: date(2026, 8, 1)})
	require.NoError(t, err)
	_, err = uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Xilacina", Unit: "ml", Quantity: "1"})
	require.NoError(t, err)

	dup := "xilacina"
	_, err = uc.Edit(ctx, a.Supply.ID, inventory.EditSupplyInput{Name: &dup})
	assert.ErrorIs(t, err, domain.ErrConflict)

	rename := "Ketamina 10%"
	unit := "frasco"
	out, err := uc.Edit(ctx, a.Supply.ID, inventory.EditSupplyInput{Name: &rename, Unit: &unit, ClearExpiry: true})
	require.NoError(t, err)
	assert.Equal(t, "Ketamina 10%", out.Name)
	assert.Equal(t, "frasco", out.Unit)
	assert.Equal(t, "3", out.Stock.String())
	assert.Nil(t, out.ExpiresAt)

	blank := "  "
	_, err = uc.Edit(ctx, a.Supply.ID, inventory.EditSupplyInput{Name: &blank})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = uc.Edit(ctx, a.Supply.ID, inventory.EditSupplyInput{ExpiresAt: date(2025, 1, 1)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDelete_InsumoEnUsoEsConflicto(t *testing.T) {
	uc, store := newUseCase()
	ctx := context.Background()
	used, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Vendas", Unit: "u", Quantity: "4"})
	require.NoError(t, err)
	free, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Guantes", Unit: "par", Quantity: "4"})
	require.NoError(t, err)

	require.NoError(t, store.Treatments().Create(ctx, &entity.Treatment{
		AnimalID: 1, AuthorID: 1, Type: "Curación", Status: entity.TreatmentPending,
		Lines: []entity.TreatmentLine{{SupplyID: used.Supply.ID, Quantity: decimal.NewFromInt(1)}},
	}))

	assert.ErrorIs(t, uc.Delete(ctx, used.Supply.ID), domain.ErrConflict)
	assert.NoError(t, uc.Delete(ctx, free.Supply.ID))
	assert.ErrorIs(t, uc.Delete(ctx, free.Supply.ID), domain.ErrNotFound)
}

func TestList_MarcaVencidos(t *testing.T) {
	uc, store := newUseCase()
	ctx := context.Background()
	// alta directa en el repositorio: el caso de uso no admite vencimientos pasados
	require.NoError(t, store.Supplies().Create(ctx, &entity.Supply{
		Name: "Antiparasitario", Unit: "comprimido", Stock: decimal.NewFromInt(2), ExpiresAt: date(2026, 5, 9),
	}))
	_, err := uc.CreateOrMerge(ctx, inventory.CreateSupplyInput{Name: "Antibiótico", Unit: "ml", Quantity: "1"})
	require.NoError(t, err)

	list, err := uc.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "Antibiótico", list.Items[0].Name)
	assert.False(t, list.Items[0].Expired)
	assert.True(t, list.Items[1].Expired)
}
