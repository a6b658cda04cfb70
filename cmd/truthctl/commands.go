package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"truthcert/internal/domain"
	"truthcert/internal/infra/document"
	"truthcert/internal/usecase"
)

func newRootCmd() *cobra.Command {
	var (
		baseURL  = envOr("TRUTHCTL_URL", "http://localhost:8080")
		adminKey = envOr("TRUTHCTL_ADMIN_KEY", "")
		timeout  = 30 * time.Second
		cl       *client
	)

	root := &cobra.Command{
		Use:           "truthctl",
		Short:         "Client for the truth certificate service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cl = newClient(baseURL, adminKey, timeout)
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "service base URL (env TRUTHCTL_URL)")
	root.PersistentFlags().StringVar(&adminKey, "admin-key", adminKey, "admin API key for revoke (env TRUTHCTL_ADMIN_KEY)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "request timeout")

	getClient := func() *client { return cl }
	root.AddCommand(
		newIssueCmd(getClient),
		newVerifyCmd(getClient),
		newStatsCmd(getClient),
		newRevokeCmd(getClient),
		newInspectCmd(),
	)
	return root
}

func newIssueCmd(cl func() *client) *cobra.Command {
	var (
		req usecase.IssueRequest
		out string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a certificate for a notarization and save the PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.NotarizationID == "" || req.CapsuleID == "" {
				return errors.New("--notarization-id and --capsule-id are required")
			}
			resp, err := cl().do(cmd.Context(), http.MethodPost, "/v1/certificates:issue", req, false)
			if err != nil {
				return err
			}
			id := resp.Header.Get("X-Certificate-Id")
			if resp.Status == http.StatusAccepted {
				fmt.Fprintf(cmd.OutOrStdout(), "certificate %s issued; document pending\n", id)
				return printJSON(cmd.OutOrStdout(), resp.Body)
			}
			if !resp.ok() {
				return resp.apiError("issue")
			}
			path := out
			if path == "" {
				path = "truth-certificate-" + id + ".pdf"
			}
			if err := os.WriteFile(path, resp.Body, 0o644); err != nil {
				return fmt.Errorf("write document: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "certificate %s written to %s\n", id, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.NotarizationID, "notarization-id", "", "notarization to certify")
	cmd.Flags().StringVar(&req.CapsuleID, "capsule-id", "", "capsule the notarization belongs to")
	cmd.Flags().StringVar(&req.RequestedBy, "requested-by", "", "requester name")
	cmd.Flags().StringVar(&req.Purpose, "purpose", "", "stated purpose")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default truth-certificate-<id>.pdf)")
	return cmd
}

func newVerifyCmd(cl func() *client) *cobra.Command {
	var (
		req     usecase.VerifyRequest
		pdfPath string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a certificate by id and signature, or from its PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pdfPath != "" {
				embedded, err := extractFile(pdfPath)
				if err != nil {
					return err
				}
				req.CertificateID = embedded.CertificateID
				req.DigitalSignature = embedded.DigitalSignature
			}
			if req.CertificateID == "" || req.DigitalSignature == "" {
				return errors.New("--certificate-id and --signature are required unless --pdf is given")
			}
			resp, err := cl().do(cmd.Context(), http.MethodPost, "/v1/certificates:verify", req, false)
			if err != nil {
				return err
			}
			var body struct {
				Verification domain.VerificationReport `json:"verification"`
			}
			if resp.Status != http.StatusOK && resp.Status != http.StatusBadRequest {
				return resp.apiError("verify")
			}
			if err := json.Unmarshal(resp.Body, &body); err != nil || body.Verification.Status == "" {
				return resp.apiError("verify")
			}
			if err := printJSON(cmd.OutOrStdout(), resp.Body); err != nil {
				return err
			}
			if !body.Verification.IsValid {
				return fmt.Errorf("certificate %s is not valid: %s", req.CertificateID, body.Verification.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.CertificateID, "certificate-id", "", "certificate id")
	cmd.Flags().StringVar(&req.DigitalSignature, "signature", "", "hex digital signature")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "read id and signature from a certificate PDF")
	return cmd
}

func newStatsCmd(cl func() *client) *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show certificate statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/certificates/stats"
			if window != "" {
				path += "?window=" + url.QueryEscape(window)
			}
			resp, err := cl().do(cmd.Context(), http.MethodGet, path, nil, false)
			if err != nil {
				return err
			}
			if !resp.ok() {
				return resp.apiError("stats")
			}
			return printJSON(cmd.OutOrStdout(), resp.Body)
		},
	}
	cmd.Flags().StringVar(&window, "window", "", "reporting window, e.g. 30d or 72h")
	return cmd
}

func newRevokeCmd(cl func() *client) *cobra.Command {
	var reason, revokedBy string
	cmd := &cobra.Command{
		Use:   "revoke <certificate-id>",
		Short: "Revoke a certificate (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"reason": reason, "revokedBy": revokedBy}
			resp, err := cl().do(cmd.Context(), http.MethodPost, "/v1/certificates/"+url.PathEscape(args[0])+"/revoke", payload, true)
			if err != nil {
				return err
			}
			if !resp.ok() {
				return resp.apiError("revoke")
			}
			return printJSON(cmd.OutOrStdout(), resp.Body)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "revocation reason")
	cmd.Flags().StringVar(&revokedBy, "revoked-by", "", "actor recorded on the custody event")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <pdf>",
		Short: "Print the certificate id and signature embedded in a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embedded, err := extractFile(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), embedded)
		},
	}
}

func extractFile(path string) (domain.EmbeddedCertificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.EmbeddedCertificate{}, fmt.Errorf("read document: %w", err)
	}
	return document.Extract(raw)
}
