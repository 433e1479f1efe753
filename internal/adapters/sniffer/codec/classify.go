package codec

import (
	"fmt"

	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

// Classify abstracts a decoded frame into a response symbol. The second
// result is false for frames that carry no meaning for the learner
// (beacons, control frames, our own responses echoed back).
func Classify(f *Frame) (string, bool) {
	switch f.Type {
	case layers.Dot11TypeMgmtAuthentication:
		if !f.HasStatus {
			return "", false
		}
		if f.Status == layers.Dot11StatusSuccess {
			return domain.RespAuthAccept, true
		}
		return domain.RespAuthReject, true
	case layers.Dot11TypeMgmtAssociationResp, layers.Dot11TypeMgmtReassociationResp:
		if !f.HasStatus {
			return "", false
		}
		if f.Status == layers.Dot11StatusSuccess {
			return domain.RespAssocAccept, true
		}
		return domain.RespAssocReject, true
	case layers.Dot11TypeMgmtDeauthentication:
		return domain.RespDeauth, true
	case layers.Dot11TypeMgmtDisassociation:
		return domain.RespDisassoc, true
	}

	switch {
	case f.Key != nil:
		return fmt.Sprintf("%s%d", domain.RespEAPOLKeyPrefix, f.Key.DetermineMessageNumber()), true
	case f.EAP != nil:
		return classifyEAP(f)
	case f.Type.MainType() == layers.Dot11TypeData:
		return domain.RespData, true
	}
	return "", false
}

func classifyEAP(f *Frame) (string, bool) {
	switch f.EAP.Code {
	case layers.EAPCodeSuccess:
		return domain.RespEAPSuccess, true
	case layers.EAPCodeFailure:
		return domain.RespEAPFailure, true
	case layers.EAPCodeRequest:
	default:
		return "", false
	}

	switch f.EAP.Type {
	case layers.EAPTypeIdentity:
		return domain.RespEAPIdentityRequest, true
	case EAPTypeTTLS:
		if f.TTLS == nil {
			break
		}
		if f.TTLS.Flags.Start() {
			return domain.RespEAPTTLSStart, true
		}
		if ct, _, ok := PeekTLS(f.TTLS.Data); ok && ct == TLSContentAlert {
			return domain.RespTLSAlert, true
		}
		if f.TTLS.Flags.MoreFragments() {
			return domain.RespServerHelloFrag, true
		}
		return domain.RespServerHello, true
	}
	return domain.RespEAPRequestPrefix + EAPTypeName(f.EAP.Type), true
}
