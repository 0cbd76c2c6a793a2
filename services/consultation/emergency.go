package consultation

const (
	emergencyText = "I've detected that you may be experiencing a medical emergency. " +
		"Please contact emergency services immediately (call 911) or go to the nearest emergency room. " +
		"This system cannot provide emergency medical care."
	emergencyDisclaimer = "This is not a substitute for professional medical advice. " +
		"In case of emergency, contact emergency services immediately."
	emergencyAction     = "Contact emergency services immediately (911)"
	emergencyConfidence = 0.95

	patientDisclaimer = "This personalized information is for educational purposes only and is not a substitute for " +
		"professional medical advice, diagnosis, or treatment. Always consult with your healthcare provider."
	patientAction = "Consult with your healthcare provider for personalized medical advice"

	clinicianDisclaimer = "This information is for educational purposes only and is not a substitute for " +
		"professional medical advice, diagnosis, or treatment."
	clinicianAction = "Use this information to support clinical decision-making in conjunction with professional medical judgment"
)

// emergencyResult is the fixed payload returned when an emergency is detected
func emergencyResult(req *Request, matched []string) *Result {
	confidence := emergencyConfidence
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "emergency-" + req.UserID
	}

	return &Result{
		Text:              emergencyText,
		Sources:           []Source{},
		ConfidenceScore:   &confidence,
		Emergency:         true,
		MatchedKeywords:   matched,
		Disclaimer:        emergencyDisclaimer,
		UrgentCare:        true,
		SuggestedAction:   emergencyAction,
		FollowUpQuestions: []string{},
		SessionID:         sessionID,
		AgentID:           AgentEmergency,
		Model:             AgentEmergency,
	}
}

// safetyFraming fills the disclaimer and suggested action for a normal answer
func safetyFraming(res *Result, req *Request) {
	if req.PatientMode() {
		res.Disclaimer = patientDisclaimer
		res.SuggestedAction = patientAction
	} else {
		res.Disclaimer = clinicianDisclaimer
		res.SuggestedAction = clinicianAction
	}
	res.FollowUpQuestions = []string{}
	if req.SessionID != "" {
		res.SessionID = req.SessionID
	} else {
		res.SessionID = "consultation-" + req.UserID
	}
}
