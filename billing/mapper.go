package billing

import (
	"github.com/spasys/billing-console/internal/utils"
	"github.com/spasys/billing-console/rawrecord"
)

// Candidate field names per canonical field. The upstream has shipped both
// its own PascalCase names and snake_case aliases over time; resolution is
// case-insensitive and in the order listed.
var (
	issuedIDKeys          = []string{"IdCobranca", "id_cobranca"}
	issuedClientNameKeys  = []string{"NomeAssistido", "nm_cliente"}
	issuedDueDateKeys     = []string{"DtVencimento", "dt_vencimento"}
	issuedCreatedAtKeys   = []string{"DtCriacao", "data_criacao_cobranca"}
	issuedUpdatedAtKeys   = []string{"DtAtualizacao", "data_atualizacao"}
	issuedDescriptionKeys = []string{"Descricao", "desc1"}
	issuedStatusKeys      = []string{"Situacao", "status_cobranca"}
	issuedAmountKeys      = []string{"Valor"}

	pendingIDKeys           = []string{"IdAssistido", "id_cliente_spa"}
	pendingNameKeys         = []string{"NomeAssistido", "paciente"}
	pendingCountKeys        = []string{"QtdeTotalProcedimento", "quantidadeProcedimentos"}
	pendingAmountKeys       = []string{"ValorTotalConsulta", "valorTotal"}
	pendingProcedureIDsKeys = []string{"IdProcedimentos"}
)

// MapIssuedBatch maps raw issued-charge records. Records without a parseable
// charge id cannot be selected or acted upon downstream and are dropped
// rather than defaulted.
func MapIssuedBatch(records []rawrecord.Record) Batch[IssuedCharge] {
	batch := Batch[IssuedCharge]{Items: make([]IssuedCharge, 0, len(records))}
	for _, r := range records {
		charge, ok := mapIssued(r)
		if !ok {
			batch.Dropped++
			continue
		}
		batch.Items = append(batch.Items, charge)
		batch.AmountTotal += charge.Amount
	}
	batch.Count = len(batch.Items)
	return batch
}

// MapPendingBatch maps raw pending-charge records, dropping those without a
// parseable patient id.
func MapPendingBatch(records []rawrecord.Record) Batch[PendingCharge] {
	batch := Batch[PendingCharge]{Items: make([]PendingCharge, 0, len(records))}
	for _, r := range records {
		charge, ok := mapPending(r)
		if !ok {
			batch.Dropped++
			continue
		}
		batch.Items = append(batch.Items, charge)
		batch.AmountTotal += charge.Amount
	}
	batch.Count = len(batch.Items)
	return batch
}

func mapIssued(r rawrecord.Record) (IssuedCharge, bool) {
	id, ok := r.Int(issuedIDKeys...)
	if !ok {
		return IssuedCharge{}, false
	}

	charge := IssuedCharge{
		ID:     id,
		Amount: r.Amount(issuedAmountKeys...),
	}
	charge.ClientName, _ = r.Text(issuedClientNameKeys...)
	charge.Description, _ = r.Text(issuedDescriptionKeys...)
	charge.Status, _ = r.Text(issuedStatusKeys...)

	if due, ok := r.Text(issuedDueDateKeys...); ok {
		charge.DueDate = utils.Ptr(due)
	}
	if created, ok := r.Text(issuedCreatedAtKeys...); ok {
		charge.CreatedAt = utils.Ptr(created)
	}
	if updated, ok := r.Text(issuedUpdatedAtKeys...); ok {
		charge.UpdatedAt = utils.Ptr(updated)
	}
	return charge, true
}

func mapPending(r rawrecord.Record) (PendingCharge, bool) {
	id, ok := r.Int(pendingIDKeys...)
	if !ok {
		return PendingCharge{}, false
	}

	charge := PendingCharge{
		PatientID: id,
		Amount:    r.Amount(pendingAmountKeys...),
	}
	charge.PatientName, _ = r.Text(pendingNameKeys...)
	charge.ProcedureIDs, _ = r.Text(pendingProcedureIDsKeys...)
	if count, ok := r.Int(pendingCountKeys...); ok {
		charge.ProcedureCount = count
	}
	return charge, true
}
