package ai

import (
	"fmt"

	"github.com/monbulletin/payslip-cli/internal/schema"
)

// systemPrompt fixes the extraction contract. The French net-pay figures are
// legally distinct and commonly co-occur on one document, so each gets an
// explicit disambiguation rule.
const systemPrompt = `Tu analyses des bulletins de salaire français et tu en extrais les champs structurés.

Règles d'extraction :
- "netToPay" est le NET À PAYER effectivement versé au salarié (après impôt sur le revenu). Ne le confonds jamais avec le montant net social.
- "netBeforeTax" est le NET À PAYER AVANT IMPÔT sur le revenu (avant prélèvement à la source).
- "netTaxable" est le NET IMPOSABLE (ou net fiscal), la base de calcul de l'impôt sur le revenu. Distinct du net à payer et du net social.
- "grossSalary" est le salaire BRUT total de la période.
- "taxAmount" est le montant de l'impôt sur le revenu prélevé à la source.
- "hoursWorked" est le nombre d'heures travaillées ou rémunérées sur la période.
- "hourlyNetTaxable" est le salaire horaire net imposable s'il figure sur le document.
- "employeeName" et "employerName" au format "NOM Prénom", sans civilité (Monsieur, Madame...).
- "siretNumber" comporte exactement 14 chiffres, sans espaces.
- "cesuNumber" commence par Z suivi uniquement de chiffres ; "isCesu" vaut true pour un bulletin CESU (employeur particulier).
- "periodMonth" (1-12) et "periodYear" désignent la période de paie, jamais la date d'édition ou de signature.
- Les montants sont des nombres décimaux avec un point, sans symbole monétaire ni espaces.
- Omets tout champ absent du document. N'invente jamais de valeur.

Réponds avec UN SEUL objet JSON conforme à ce schéma, sans texte autour :

%s`

// SystemPrompt returns the full instruction set, schema included.
func SystemPrompt() string {
	return fmt.Sprintf(systemPrompt, schema.PayslipSchemaJSON())
}

// userPrompt asks for the attached document's fields.
const userPrompt = `Extrais les champs du bulletin de salaire ci-joint et réponds uniquement avec l'objet JSON.`
