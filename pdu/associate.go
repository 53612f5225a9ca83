package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/types"
)

// protocolVersion is the only version defined by PS3.8.
const protocolVersion uint16 = 0x0001

// RoleSelection carries one SCP/SCU role selection sub-item. Roles are
// negotiated per SOP class, not per presentation context.
type RoleSelection struct {
	SOPClassUID string
	SCURole     bool
	SCPRole     bool
}

// UserInfo carries the user information item fields shared by the RQ and
// AC forms.
type UserInfo struct {
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
	RoleSelections         []RoleSelection
}

func (ui *UserInfo) encode() []byte {
	maxPDU := ui.MaxPDULength
	if maxPDU == 0 {
		maxPDU = types.DefaultMaxPDULength
	}

	var info []byte
	info = appendItem(info, itemMaxPDULength, binary.BigEndian.AppendUint32(nil, maxPDU))
	if ui.ImplementationClassUID != "" {
		info = appendItem(info, itemImplementationClassUID, []byte(ui.ImplementationClassUID))
	}
	for _, rs := range ui.RoleSelections {
		info = appendItem(info, itemRoleSelection, encodeRoleSelection(rs))
	}
	if ui.ImplementationVersion != "" {
		info = appendItem(info, itemImplementationVersion, []byte(ui.ImplementationVersion))
	}
	return info
}

func (ui *UserInfo) parse(data []byte) error {
	offset := 0
	for offset < len(data) {
		itemType, value, next, err := nextItem(data, offset)
		if err != nil {
			return fmt.Errorf("user information: %w", err)
		}

		switch itemType {
		case itemMaxPDULength:
			if len(value) == 4 {
				ui.MaxPDULength = binary.BigEndian.Uint32(value)
			}
		case itemImplementationClassUID:
			ui.ImplementationClassUID = normalizeUID(value)
		case itemImplementationVersion:
			ui.ImplementationVersion = normalizeUID(value)
		case itemRoleSelection:
			rs, err := parseRoleSelection(value)
			if err != nil {
				return err
			}
			ui.RoleSelections = append(ui.RoleSelections, rs)
		}

		offset = next
	}
	return nil
}

func encodeRoleSelection(rs RoleSelection) []byte {
	var buf []byte
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(rs.SOPClassUID)))
	buf = append(buf, []byte(rs.SOPClassUID)...)

	var scu, scp byte
	if rs.SCURole {
		scu = 1
	}
	if rs.SCPRole {
		scp = 1
	}
	return append(buf, scu, scp)
}

func parseRoleSelection(data []byte) (RoleSelection, error) {
	if len(data) < 4 {
		return RoleSelection{}, fmt.Errorf("role selection too short: %d bytes", len(data))
	}
	uidLen := int(binary.BigEndian.Uint16(data[0:2]))
	if 2+uidLen+2 > len(data) {
		return RoleSelection{}, fmt.Errorf("role selection UID exceeds item length")
	}
	return RoleSelection{
		SOPClassUID: normalizeUID(data[2 : 2+uidLen]),
		SCURole:     data[2+uidLen] == 1,
		SCPRole:     data[2+uidLen+1] == 1,
	}, nil
}

// RoleSelectionsFromContexts collects one role selection per abstract
// syntax across every context that proposes an explicit role.
func RoleSelectionsFromContexts(contexts []*types.PresentationContext) []RoleSelection {
	var out []RoleSelection
	seen := make(map[string]bool)
	for _, pc := range contexts {
		scu, scuOK := pc.UserRole()
		scp, scpOK := pc.ProviderRole()
		if !scuOK && !scpOK {
			continue
		}
		if seen[pc.AbstractSyntax()] {
			continue
		}
		seen[pc.AbstractSyntax()] = true
		out = append(out, RoleSelection{
			SOPClassUID: pc.AbstractSyntax(),
			SCURole:     scu,
			SCPRole:     scp,
		})
	}
	return out
}

// applyRoleSelections pushes negotiated roles onto every context proposed
// for the matching SOP class.
func applyRoleSelections(selections []RoleSelection, contexts []*types.PresentationContext) {
	for _, rs := range selections {
		for _, pc := range contexts {
			if pc.AbstractSyntax() == rs.SOPClassUID {
				pc.SetUserRole(rs.SCURole)
				pc.SetProviderRole(rs.SCPRole)
			}
		}
	}
}

// encodeAssociateFixed lays out the 68 fixed bytes shared by the RQ and AC
// forms: protocol version and the two padded AE titles.
func encodeAssociateFixed(calledAE, callingAE string) []byte {
	fixed := make([]byte, 68)
	binary.BigEndian.PutUint16(fixed[0:2], protocolVersion)
	copy(fixed[4:20], padAETitle(calledAE))
	copy(fixed[20:36], padAETitle(callingAE))
	return fixed
}

// AssociateRQ is a decoded A-ASSOCIATE-RQ PDU.
type AssociateRQ struct {
	CalledAETitle        string
	CallingAETitle       string
	ApplicationContext   string
	PresentationContexts []*types.PresentationContext
	UserInfo
}

// Encode serializes the request as a PDU body.
func (rq *AssociateRQ) Encode() []byte {
	body := encodeAssociateFixed(rq.CalledAETitle, rq.CallingAETitle)

	appContext := rq.ApplicationContext
	if appContext == "" {
		appContext = types.ApplicationContextUID
	}
	body = appendItem(body, itemApplicationContext, []byte(appContext))

	for _, pc := range rq.PresentationContexts {
		sub := []byte{pc.ID(), 0x00, 0x00, 0x00}
		sub = appendItem(sub, itemAbstractSyntax, []byte(pc.AbstractSyntax()))
		for _, ts := range pc.TransferSyntaxes() {
			sub = appendItem(sub, itemTransferSyntax, []byte(ts))
		}
		body = appendItem(body, itemPresentationContextRQ, sub)
	}

	return appendItem(body, itemUserInformation, rq.UserInfo.encode())
}

// ParseAssociateRQ decodes the body of an A-ASSOCIATE-RQ PDU. Proposed
// contexts come back in wire order with their transfer syntax candidates
// in proposal order and any role selections already applied.
func ParseAssociateRQ(data []byte) (*AssociateRQ, error) {
	if len(data) < 68 {
		return nil, dicomerr.NewPDUError(TypeAssociateRQ, fmt.Sprintf("associate request too short: %d bytes", len(data)))
	}

	rq := &AssociateRQ{
		CalledAETitle:  parseAETitle(data[4:20]),
		CallingAETitle: parseAETitle(data[20:36]),
	}
	rq.MaxPDULength = types.DefaultMaxPDULength

	offset := 68
	for offset < len(data) {
		itemType, value, next, err := nextItem(data, offset)
		if err != nil {
			return nil, dicomerr.NewPDUError(TypeAssociateRQ, err.Error())
		}

		switch itemType {
		case itemApplicationContext:
			rq.ApplicationContext = normalizeUID(value)
		case itemPresentationContextRQ:
			pc, err := parseProposedContext(value)
			if err != nil {
				return nil, dicomerr.NewPDUError(TypeAssociateRQ, err.Error())
			}
			rq.PresentationContexts = append(rq.PresentationContexts, pc)
		case itemUserInformation:
			if err := rq.UserInfo.parse(value); err != nil {
				return nil, dicomerr.NewPDUError(TypeAssociateRQ, err.Error())
			}
		}

		offset = next
	}

	applyRoleSelections(rq.RoleSelections, rq.PresentationContexts)
	return rq, nil
}

func parseProposedContext(data []byte) (*types.PresentationContext, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("presentation context too short: %d bytes", len(data))
	}

	ctxID := data[0]
	var abstractSyntax string
	var transferSyntaxes []string

	offset := 4
	for offset < len(data) {
		itemType, value, next, err := nextItem(data, offset)
		if err != nil {
			return nil, fmt.Errorf("presentation context %d: %w", ctxID, err)
		}

		switch itemType {
		case itemAbstractSyntax:
			abstractSyntax = normalizeUID(value)
		case itemTransferSyntax:
			transferSyntaxes = append(transferSyntaxes, normalizeUID(value))
		}

		offset = next
	}

	if abstractSyntax == "" {
		return nil, fmt.Errorf("presentation context %d missing abstract syntax", ctxID)
	}

	pc := types.NewPresentationContext(ctxID, abstractSyntax)
	for _, ts := range transferSyntaxes {
		pc.AddTransferSyntax(ts)
	}
	return pc, nil
}

// AssociateAC is a decoded A-ASSOCIATE-AC PDU.
type AssociateAC struct {
	CalledAETitle        string
	CallingAETitle       string
	ApplicationContext   string
	PresentationContexts []*types.PresentationContext
	UserInfo
}

// Encode serializes the accept as a PDU body. Every negotiated context is
// included: accepted ones carry their selected transfer syntax, rejected
// ones carry only the result code.
func (ac *AssociateAC) Encode() []byte {
	body := encodeAssociateFixed(ac.CalledAETitle, ac.CallingAETitle)

	appContext := ac.ApplicationContext
	if appContext == "" {
		appContext = types.ApplicationContextUID
	}
	body = appendItem(body, itemApplicationContext, []byte(appContext))

	for _, pc := range ac.PresentationContexts {
		sub := []byte{pc.ID(), 0x00, byte(pc.Result()), 0x00}
		if pc.Result() == types.ResultAccept {
			sub = appendItem(sub, itemTransferSyntax, []byte(pc.AcceptedTransferSyntax()))
		}
		body = appendItem(body, itemPresentationContextAC, sub)
	}

	return appendItem(body, itemUserInformation, ac.UserInfo.encode())
}

// ParseAssociateAC decodes the body of an A-ASSOCIATE-AC PDU. The returned
// contexts carry only what the wire does: id, result and the selected
// transfer syntax. Callers match them to their proposed contexts by id.
func ParseAssociateAC(data []byte) (*AssociateAC, error) {
	if len(data) < 68 {
		return nil, dicomerr.NewPDUError(TypeAssociateAC, fmt.Sprintf("associate accept too short: %d bytes", len(data)))
	}

	ac := &AssociateAC{
		CalledAETitle:  parseAETitle(data[4:20]),
		CallingAETitle: parseAETitle(data[20:36]),
	}
	ac.MaxPDULength = types.DefaultMaxPDULength

	offset := 68
	for offset < len(data) {
		itemType, value, next, err := nextItem(data, offset)
		if err != nil {
			return nil, dicomerr.NewPDUError(TypeAssociateAC, err.Error())
		}

		switch itemType {
		case itemApplicationContext:
			ac.ApplicationContext = normalizeUID(value)
		case itemPresentationContextAC:
			pc, err := parseNegotiatedContext(value)
			if err != nil {
				return nil, dicomerr.NewPDUError(TypeAssociateAC, err.Error())
			}
			ac.PresentationContexts = append(ac.PresentationContexts, pc)
		case itemUserInformation:
			if err := ac.UserInfo.parse(value); err != nil {
				return nil, dicomerr.NewPDUError(TypeAssociateAC, err.Error())
			}
		}

		offset = next
	}

	return ac, nil
}

func parseNegotiatedContext(data []byte) (*types.PresentationContext, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("presentation context reply too short: %d bytes", len(data))
	}

	ctxID := data[0]
	result := types.PresentationContextResult(data[2])
	transferSyntax := ""

	offset := 4
	for offset < len(data) {
		itemType, value, next, err := nextItem(data, offset)
		if err != nil {
			return nil, fmt.Errorf("presentation context %d: %w", ctxID, err)
		}
		if itemType == itemTransferSyntax {
			transferSyntax = normalizeUID(value)
		}
		offset = next
	}

	return types.NewNegotiatedPresentationContext(ctxID, "", transferSyntax, result), nil
}

// AssociateRJ is a decoded A-ASSOCIATE-RJ PDU.
type AssociateRJ struct {
	Result dicomerr.AssociationRejectResult
	Source dicomerr.AssociationRejectSource
	Reason dicomerr.AssociationRejectReason
}

// Encode serializes the reject as a PDU body.
func (rj *AssociateRJ) Encode() []byte {
	return []byte{0x00, byte(rj.Result), byte(rj.Source), byte(rj.Reason)}
}

// ParseAssociateRJ decodes the body of an A-ASSOCIATE-RJ PDU.
func ParseAssociateRJ(data []byte) (*AssociateRJ, error) {
	if len(data) < 4 {
		return nil, dicomerr.NewPDUError(TypeAssociateRJ, fmt.Sprintf("associate reject too short: %d bytes", len(data)))
	}
	return &AssociateRJ{
		Result: dicomerr.AssociationRejectResult(data[1]),
		Source: dicomerr.AssociationRejectSource(data[2]),
		Reason: dicomerr.AssociationRejectReason(data[3]),
	}, nil
}

// Err converts the rejection into an AssociationError.
func (rj *AssociateRJ) Err() error {
	return dicomerr.NewAssociationError(rj.Result, rj.Source, rj.Reason, "peer rejected association")
}

// EncodeAbort builds the body of an A-ABORT PDU.
func EncodeAbort(source, reason byte) []byte {
	return []byte{0x00, 0x00, source, reason}
}

// ParseAbort decodes the body of an A-ABORT PDU. Short bodies decode as
// source and reason zero.
func ParseAbort(data []byte) (source, reason byte) {
	if len(data) >= 4 {
		return data[2], data[3]
	}
	return 0, 0
}

// EncodeRelease builds the four reserved bytes shared by A-RELEASE-RQ and
// A-RELEASE-RP bodies.
func EncodeRelease() []byte {
	return []byte{0x00, 0x00, 0x00, 0x00}
}
