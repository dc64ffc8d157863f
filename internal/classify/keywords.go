package classify

// Route is a controlled-vocabulary administration route.
type Route string

const (
	RouteOral            Route = "oral"
	RouteIntravenous     Route = "intravenous"
	RouteSubcutaneous    Route = "subcutaneous"
	RouteIntramuscular   Route = "intramuscular"
	RouteTopical         Route = "topical"
	RouteInhalation      Route = "inhalation"
	RouteIntranasal      Route = "intranasal"
	RouteOphthalmic      Route = "ophthalmic"
	RouteRectal          Route = "rectal"
	RouteTransdermal     Route = "transdermal"
	RouteIntraperitoneal Route = "intraperitoneal"
	RouteIntraarterial   Route = "intraarterial"
)

// DosageForm is a controlled-vocabulary dosage form.
type DosageForm string

const (
	FormTablet      DosageForm = "tablet"
	FormCapsule     DosageForm = "capsule"
	FormSolution    DosageForm = "solution"
	FormInjection   DosageForm = "injection"
	FormSuspension  DosageForm = "suspension"
	FormPatch       DosageForm = "patch"
	FormCream       DosageForm = "cream"
	FormGel         DosageForm = "gel"
	FormSpray       DosageForm = "spray"
	FormInhaler     DosageForm = "inhaler"
	FormDrops       DosageForm = "drops"
	FormPowder      DosageForm = "powder"
	FormLozenge     DosageForm = "lozenge"
	FormSuppository DosageForm = "suppository"
)

// Declaration order is the tie-break order: the first category with a
// matching keyword wins, and keywords are tried in list order.
var routeKeywords = []categoryDef{
	{string(RouteOral), []string{"oral", "po", "by mouth", "per os"}},
	{string(RouteIntravenous), []string{"intravenous", "iv", "i.v.", "intra-venous"}},
	{string(RouteSubcutaneous), []string{"subcutaneous", "sc", "s.c.", "sub-q", "subq"}},
	{string(RouteIntramuscular), []string{"intramuscular", "im", "i.m."}},
	{string(RouteTopical), []string{"topical", "topically"}},
	{string(RouteInhalation), []string{"inhalation", "inhaled", "inhaler", "nebulized"}},
	{string(RouteIntranasal), []string{"intranasal", "nasal", "intra-nasal"}},
	{string(RouteOphthalmic), []string{"ophthalmic", "eye", "ocular", "ophthalmically"}},
	{string(RouteRectal), []string{"rectal", "rectally"}},
	{string(RouteTransdermal), []string{"transdermal", "patch", "dermal"}},
	{string(RouteIntraperitoneal), []string{"intraperitoneal", "ip", "i.p."}},
	{string(RouteIntraarterial), []string{"intraarterial", "ia", "i.a."}},
}

var dosageFormKeywords = []categoryDef{
	{string(FormTablet), []string{"tablet", "tab", "tablets"}},
	{string(FormCapsule), []string{"capsule", "cap", "capsules"}},
	{string(FormSolution), []string{"solution", "sol", "solutions"}},
	{string(FormInjection), []string{"injection", "injectable", "injections"}},
	{string(FormSuspension), []string{"suspension", "susp", "suspensions"}},
	{string(FormPatch), []string{"patch", "patches", "transdermal patch"}},
	{string(FormCream), []string{"cream", "creams"}},
	{string(FormGel), []string{"gel", "gels"}},
	{string(FormSpray), []string{"spray", "sprays"}},
	{string(FormInhaler), []string{"inhaler", "inhalers", "puffer"}},
	{string(FormDrops), []string{"drops", "eye drops", "ear drops"}},
	{string(FormPowder), []string{"powder", "powders"}},
	{string(FormLozenge), []string{"lozenge", "lozenges"}},
	{string(FormSuppository), []string{"suppository", "suppositories"}},
}
