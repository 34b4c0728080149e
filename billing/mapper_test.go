package billing_test

import (
	"testing"

	"github.com/spasys/billing-console/billing"
	"github.com/spasys/billing-console/rawrecord"
	"github.com/stretchr/testify/require"
)

func record(fields map[string]any) rawrecord.Record {
	return rawrecord.New(fields)
}

func TestMapPendingBatch(t *testing.T) {
	t.Run("drops records without a parseable id", func(t *testing.T) {
		batch := billing.MapPendingBatch([]rawrecord.Record{
			record(map[string]any{
				"IdAssistido":           "101",
				"NomeAssistido":         " Ana Souza ",
				"QtdeTotalProcedimento": "3",
				"ValorTotalConsulta":    "1.200,00",
				"IdProcedimentos":       "10,11,12",
			}),
			record(map[string]any{
				"IdAssistido":        "n/a",
				"NomeAssistido":      "Sem Id",
				"ValorTotalConsulta": "999,99",
			}),
			record(map[string]any{
				"IdAssistido":        float64(102),
				"ValorTotalConsulta": "300,50",
			}),
		})

		require.Len(t, batch.Items, 2)
		require.Equal(t, 2, batch.Count)
		require.Equal(t, 1, batch.Dropped)
		require.InDelta(t, 1500.50, batch.AmountTotal, 1e-9)

		first := batch.Items[0]
		require.Equal(t, int64(101), first.PatientID)
		require.Equal(t, "Ana Souza", first.PatientName)
		require.Equal(t, int64(3), first.ProcedureCount)
		require.Equal(t, "10,11,12", first.ProcedureIDs)

		second := batch.Items[1]
		require.Equal(t, int64(102), second.PatientID)
		require.Empty(t, second.PatientName)
		require.Zero(t, second.ProcedureCount)
	})

	t.Run("case-insensitive aliases resolve", func(t *testing.T) {
		batch := billing.MapPendingBatch([]rawrecord.Record{
			record(map[string]any{
				"id_cliente_spa": "77",
				"PACIENTE":       "Bruno Lima",
				"valortotal":     "50",
			}),
		})

		require.Len(t, batch.Items, 1)
		require.Equal(t, int64(77), batch.Items[0].PatientID)
		require.Equal(t, "Bruno Lima", batch.Items[0].PatientName)
		require.InDelta(t, 50, batch.Items[0].Amount, 1e-9)
	})

	t.Run("empty input", func(t *testing.T) {
		batch := billing.MapPendingBatch(nil)
		require.Empty(t, batch.Items)
		require.Zero(t, batch.Count)
		require.Zero(t, batch.AmountTotal)
	})
}

func TestMapIssuedBatch(t *testing.T) {
	batch := billing.MapIssuedBatch([]rawrecord.Record{
		record(map[string]any{
			"IdCobranca":    float64(501),
			"NomeAssistido": "Ana Souza",
			"DtVencimento":  "2026-09-10",
			"DtCriacao":     "2026-08-01",
			"Descricao":     " Consulta ",
			"Situacao":      "EMITIDA",
			"Valor":         "1.234,56",
		}),
		record(map[string]any{
			"NomeAssistido": "Sem Id",
			"Valor":         "10,00",
		}),
	})

	require.Len(t, batch.Items, 1)
	require.Equal(t, 1, batch.Dropped)
	require.InDelta(t, 1234.56, batch.AmountTotal, 1e-9)

	charge := batch.Items[0]
	require.Equal(t, int64(501), charge.ID)
	require.Equal(t, "Ana Souza", charge.ClientName)
	require.Equal(t, "Consulta", charge.Description)
	require.Equal(t, "EMITIDA", charge.Status)
	require.InDelta(t, 1234.56, charge.Amount, 1e-9)
	require.NotNil(t, charge.DueDate)
	require.Equal(t, "2026-09-10", *charge.DueDate)
	require.NotNil(t, charge.CreatedAt)
	require.Nil(t, charge.UpdatedAt)
}

func TestMapIssuedBatch_AbsentOptionalFields(t *testing.T) {
	batch := billing.MapIssuedBatch([]rawrecord.Record{
		record(map[string]any{"IdCobranca": "600"}),
	})

	require.Len(t, batch.Items, 1)
	charge := batch.Items[0]
	require.Equal(t, int64(600), charge.ID)
	require.Empty(t, charge.ClientName)
	require.Empty(t, charge.Description)
	require.Empty(t, charge.Status)
	require.Zero(t, charge.Amount)
	require.Nil(t, charge.DueDate)
	require.Nil(t, charge.CreatedAt)
	require.Nil(t, charge.UpdatedAt)
}
