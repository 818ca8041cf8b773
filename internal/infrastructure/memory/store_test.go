package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/repository"
)

func seedSupply(t *testing.T, s *Store, name, stock string) *entity.Supply {
	t.Helper()
	sup := &entity.Supply{Name: name, Unit: "ml", Stock: decimal.RequireFromString(stock)}
	require.NoError(t, s.Supplies().Create(context.Background(), sup))
	return sup
}

func TestRun_RollbackDeshaceEscrituras(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sup := seedSupply(t, s, "Amoxicilina", "10")

	boom := errors.New("boom")
	err := s.Run(ctx, func(supplies repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		rows, err := supplies.GetForUpdate(ctx, []int64{sup.ID})
		require.NoError(t, err)
		rows[0].Stock = decimal.NewFromInt(1)
		require.NoError(t, supplies.Update(ctx, rows[0]))
		require.NoError(t, supplies.Create(ctx, &entity.Supply{Name: "Gasas", Unit: "u", Stock: decimal.NewFromInt(3)}))
		require.NoError(t, treatments.Create(ctx, &entity.Treatment{
			AnimalID: 1, AuthorID: 1, Type: "Curación", Status: entity.TreatmentPending,
			Lines: []entity.TreatmentLine{{SupplyID: sup.ID, Quantity: decimal.NewFromInt(2)}},
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Supplies().GetByID(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, got.Stock.Equal(decimal.NewFromInt(10)))

	list, err := s.Supplies().List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	ref, err := s.Supplies().IsReferenced(ctx, sup.ID)
	require.NoError(t, err)
	assert.False(t, ref)
}

func TestRun_CommitPersiste(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sup := seedSupply(t, s, "Suero", "5")

	err := s.Run(ctx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
		rows, err := supplies.GetForUpdate(ctx, []int64{sup.ID})
		if err != nil {
			return err
		}
		rows[0].Stock = rows[0].Stock.Sub(decimal.RequireFromString("1.5"))
		return supplies.Update(ctx, rows[0])
	})
	require.NoError(t, err)

	got, _ := s.Supplies().GetByID(ctx, sup.ID)
	assert.Equal(t, "3.5", got.Stock.String())
}

func TestGetForUpdate_OrdenAscendenteYSoloExistentes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedSupply(t, s, "A", "1")
	b := seedSupply(t, s, "B", "1")

	err := s.Run(ctx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
		rows, err := supplies.GetForUpdate(ctx, []int64{b.ID, 999, a.ID, b.ID})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, a.ID, rows[0].ID)
		assert.Equal(t, b.ID, rows[1].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestBloqueo_EsperaRespetaContexto(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sup := seedSupply(t, s, "Ketamina", "2")

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
			if _, err := supplies.GetForUpdate(ctx, []int64{sup.ID}); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err := s.Run(waitCtx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
		_, err := supplies.GetForUpdate(waitCtx, []int64{sup.ID})
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	// liberado: una nueva transacción obtiene el bloqueo
	err = s.Run(ctx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
		_, err := supplies.GetForUpdate(ctx, []int64{sup.ID})
		return err
	})
	assert.NoError(t, err)
}

func TestSupplies_NombreUnicoYBajaConReferencias(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sup := seedSupply(t, s, "Amoxicilina", "10")

	err := s.Supplies().Create(ctx, &entity.Supply{Name: "  AMOXICILINA ", Unit: "ml"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	tr := &entity.Treatment{
		AnimalID: 4, AuthorID: 1, Type: "Antibiótico", Status: entity.TreatmentPending,
		Lines: []entity.TreatmentLine{{SupplyID: sup.ID, Quantity: decimal.NewFromInt(1)}},
	}
	require.NoError(t, s.Treatments().Create(ctx, tr))

	err = s.Supplies().Delete(ctx, sup.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, s.Treatments().Delete(ctx, tr.ID))
	assert.NoError(t, s.Supplies().Delete(ctx, sup.ID))
}

func TestSupplies_ListFiltraPorNombreOUnidad(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedSupply(t, s, "Suero fisiológico", "1")
	seedSupply(t, s, "amoxicilina", "1")
	require.NoError(t, s.Supplies().Create(ctx, &entity.Supply{Name: "Gasas", Unit: "Paquete"}))

	all, err := s.Supplies().List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "amoxicilina", all[0].Name)
	assert.Equal(t, "Gasas", all[1].Name)

	byUnit, err := s.Supplies().List(ctx, "paq")
	require.NoError(t, err)
	require.Len(t, byUnit, 1)
	assert.Equal(t, "Gasas", byUnit[0].Name)
}

func TestTreatments_ListByAnimalOrdenadoPorFechaEId(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	d1 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	d0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, d := range []time.Time{d1, d0, d1} {
		require.NoError(t, s.Treatments().Create(ctx, &entity.Treatment{
			AnimalID: 9, AuthorID: 1, Type: "Control", Date: d, Status: entity.TreatmentPending,
		}))
	}
	require.NoError(t, s.Treatments().Create(ctx, &entity.Treatment{
		AnimalID: 10, AuthorID: 1, Type: "Otro", Date: d0, Status: entity.TreatmentPending,
	}))

	list, err := s.Treatments().ListByAnimal(ctx, 9)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{2, 1, 3}, []int64{list[0].ID, list[1].ID, list[2].ID})
}

func TestVisibilidad_LecturasVenSoloLoConfirmado(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sup := seedSupply(t, s, "Amoxicilina", "5")
	tr := &entity.Treatment{
		AnimalID: 1, AuthorID: 1, Type: "Curación", Status: entity.TreatmentPending,
		Lines: []entity.TreatmentLine{{SupplyID: sup.ID, Quantity: decimal.NewFromInt(2)}},
	}
	require.NoError(t, s.Treatments().Create(ctx, tr))

	boom := errors.New("boom")
	written := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(supplies repository.SupplyRepository, treatments repository.TreatmentRepository) error {
			rows, err := supplies.GetForUpdate(ctx, []int64{sup.ID})
			if err != nil {
				return err
			}
			rows[0].Stock = decimal.Zero
			if err := supplies.Update(ctx, rows[0]); err != nil {
				return err
			}
			if err := supplies.Create(ctx, &entity.Supply{Name: "Gasas", Unit: "u", Stock: decimal.NewFromInt(3)}); err != nil {
				return err
			}
			locked, err := treatments.GetForUpdate(ctx, tr.ID)
			if err != nil {
				return err
			}
			locked.Status = entity.TreatmentApproved
			if err := treatments.Update(ctx, locked); err != nil {
				return err
			}
			close(written)
			<-release
			return boom
		})
	}()
	<-written

	got, err := s.Supplies().GetByID(ctx, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", got.Stock.String())

	list, err := s.Supplies().List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	gasas, err := s.Supplies().FindByName(ctx, "gasas")
	require.NoError(t, err)
	assert.Nil(t, gasas)

	gotTr, err := s.Treatments().GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TreatmentPending, gotTr.Status)

	close(release)
	require.ErrorIs(t, <-done, boom)

	got, err = s.Supplies().GetByID(ctx, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", got.Stock.String())
	gasas, err = s.Supplies().FindByName(ctx, "gasas")
	require.NoError(t, err)
	assert.Nil(t, gasas)
}

func TestVisibilidad_ConfirmadoQuedaVisible(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sup := seedSupply(t, s, "Suero", "5")

	err := s.Run(ctx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
		rows, err := supplies.GetForUpdate(ctx, []int64{sup.ID})
		if err != nil {
			return err
		}
		rows[0].Stock = decimal.NewFromInt(1)
		if err := supplies.Update(ctx, rows[0]); err != nil {
			return err
		}
		// la propia transacción ve lo que escribió
		own, err := supplies.GetByID(ctx, sup.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "1", own.Stock.String())
		return supplies.Create(ctx, &entity.Supply{Name: "Gasas", Unit: "u", Stock: decimal.NewFromInt(3)})
	})
	require.NoError(t, err)

	got, err := s.Supplies().GetByID(ctx, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", got.Stock.String())
	gasas, err := s.Supplies().FindByName(ctx, "GASAS")
	require.NoError(t, err)
	require.NotNil(t, gasas)
	assert.Empty(t, s.supplyShadows)
	assert.Empty(t, s.treatmentShadows)
}
